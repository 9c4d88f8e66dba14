package services

import (
	"fmt"
	"strings"

	"github.com/yoockh/yoointerview/internal/models"
)

var fallbackTemplates = map[string][]string{
	"en": {
		"Walk me through your background and why you are interested in the %s role.",
		"Describe a challenging project that is relevant to a %s position. What was your contribution and what was the outcome?",
		"Which of your skills matter most for a %s, and where have you applied them recently?",
		"Tell me about a time you disagreed with a teammate. How did you resolve it?",
		"How do you keep your knowledge current as a %s?",
		"Describe a mistake you made at work and what you changed afterwards.",
		"How do you prioritise when several urgent tasks compete for your time?",
		"What would you focus on during your first three months as a %s?",
		"Tell me about a time you had to learn something new quickly to deliver a result.",
		"Describe a situation where you received critical feedback. How did you respond?",
		"How would you explain a complex problem from your field to a non-specialist?",
		"Why should we choose you for this %s role over other candidates?",
	},
	"id": {
		"Ceritakan latar belakang Anda dan alasan Anda tertarik pada posisi %s.",
		"Jelaskan proyek menantang yang relevan dengan posisi %s. Apa kontribusi Anda dan bagaimana hasilnya?",
		"Keterampilan apa yang paling penting untuk seorang %s, dan di mana Anda menerapkannya baru-baru ini?",
		"Ceritakan saat Anda berbeda pendapat dengan rekan kerja. Bagaimana Anda menyelesaikannya?",
		"Bagaimana Anda menjaga pengetahuan Anda tetap terkini sebagai %s?",
		"Jelaskan kesalahan yang pernah Anda buat di tempat kerja dan apa yang Anda ubah setelahnya.",
		"Bagaimana Anda menentukan prioritas ketika beberapa tugas mendesak datang bersamaan?",
		"Apa yang akan Anda fokuskan pada tiga bulan pertama sebagai %s?",
		"Ceritakan saat Anda harus mempelajari hal baru dengan cepat untuk mencapai hasil.",
		"Jelaskan situasi ketika Anda menerima kritik. Bagaimana tanggapan Anda?",
		"Bagaimana Anda menjelaskan masalah rumit di bidang Anda kepada orang awam?",
		"Mengapa kami harus memilih Anda untuk posisi %s ini dibanding kandidat lain?",
	},
}

// fallbackQuestion returns the first template for the profile's language
// whose rendering is not in used.
func fallbackQuestion(p models.CandidateProfile, used map[string]bool) models.Question {
	templates, ok := fallbackTemplates[p.LanguageOrDefault()]
	if !ok {
		templates = fallbackTemplates["en"]
	}
	job := strings.TrimSpace(p.TargetJob)
	if job == "" {
		job = "candidate"
	}

	var text string
	for i, tpl := range templates {
		text = render(tpl, job)
		if !used[strings.ToLower(text)] {
			break
		}
		if i == len(templates)-1 {
			text = fmt.Sprintf("%s (%d)", text, len(used)+1)
		}
	}
	return models.Question{
		Text:                 text,
		SuggestedTimeSeconds: 150,
		Fallback:             true,
	}
}

func render(tpl, job string) string {
	if strings.Contains(tpl, "%s") {
		return fmt.Sprintf(tpl, job)
	}
	return tpl
}
