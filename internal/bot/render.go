package bot

import (
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/yachay/internal/detection"
	"github.com/example/yachay/internal/exercise"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/session"
	"github.com/example/yachay/pkg/models"
)

const vocabListLimit = 20

func stars(level int) string {
	level = min(max(level, 0), mastery.MaxLevel)
	return strings.Repeat("★", level) + strings.Repeat("☆", mastery.MaxLevel-level)
}

// renderExercise formats one session item. Choice items carry one button per option.
func renderExercise(s *models.Session, item *models.SessionItem, ex exercise.Exercise) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ejercicio %d/%d\n\n%s", item.Position+1, s.Total, ex.Question())

	var rows [][]MenuButton
	switch e := ex.(type) {
	case *exercise.MultipleChoice:
		for i, opt := range e.Options {
			rows = append(rows, []MenuButton{{Text: opt, CallbackData: answerData(s.ID, item.Position, i)}})
		}
	case *exercise.Matching:
		fmt.Fprintf(&sb, "\n\n%s %s ?", e.Gloss, exercise.PairSeparator)
		for i, p := range e.Pairs {
			rows = append(rows, []MenuButton{{Text: p.Quechua, CallbackData: answerData(s.ID, item.Position, i)}})
		}
	case *exercise.FillBlank:
		fmt.Fprintf(&sb, "\n\n💡 %s\nEscribe la palabra completa.", e.Hint)
	case *exercise.Anagram:
		fmt.Fprintf(&sb, "\n\n💡 %s\nEscribe la palabra ordenada.", e.Hint)
	case *exercise.Pronunciation:
		fmt.Fprintf(&sb, "\n\n🗣 %s\nEnvía una nota de voz.", e.Guide)
	}
	rows = append(rows, []MenuButton{{Text: "🚪 Abandonar", CallbackData: callbackAbandon}})

	return sb.String(), createKeyboard(rows)
}

// optionAnswer turns the button at idx into the answer string the exercise checks
func optionAnswer(ex exercise.Exercise, idx int) (string, bool) {
	switch e := ex.(type) {
	case *exercise.MultipleChoice:
		if idx >= 0 && idx < len(e.Options) {
			return e.Options[idx], true
		}
	case *exercise.Matching:
		if idx >= 0 && idx < len(e.Pairs) {
			return e.Gloss + exercise.PairSeparator + e.Pairs[idx].Quechua, true
		}
	}
	return "", false
}

func renderFeedback(fb *session.Feedback) string {
	var lines []string
	word := fb.Exercise.Word()
	if fb.Correct {
		lines = append(lines, fmt.Sprintf("✅ ¡Correcto! %s", word))
	} else {
		lines = append(lines, fmt.Sprintf("❌ No es correcto. La respuesta era %s.", word))
	}

	res := fb.Result
	switch {
	case res.NewlyMastered:
		lines = append(lines, fmt.Sprintf("🏆 ¡Dominaste %s! %s", word, stars(res.CurrentLevel)))
	case res.MasteryUpdated:
		lines = append(lines, fmt.Sprintf("⭐ Subiste a nivel %d: %s", res.CurrentLevel, stars(res.CurrentLevel)))
	case res.MasteryDecreased:
		lines = append(lines, fmt.Sprintf("📉 Bajaste a nivel %d: %s", res.CurrentLevel, stars(res.CurrentLevel)))
	}
	if !fb.Correct && !res.MasteryDecreased {
		if res.IsRecentWord {
			lines = append(lines, "🛡 Es una palabra nueva: no perderás estrellas por ahora.")
		} else if res.ConsecutiveFailures > 0 {
			lines = append(lines, fmt.Sprintf("Fallos seguidos: %d/%d", res.ConsecutiveFailures, res.ConsecutiveFailuresLimit))
		}
	}
	if fb.Correct && !res.MasteryUpdated && res.ExercisesNeededForNextReview > 0 {
		lines = append(lines, fmt.Sprintf("Te faltan %d ejercicios para subir de nivel.", res.ExercisesNeededForNextReview))
	}
	return strings.Join(lines, "\n")
}

func renderCompletion(s *models.Session, goal *models.DailyGoal) string {
	correct := 0
	for _, it := range s.Items {
		if it.Correct {
			correct++
		}
	}
	text := fmt.Sprintf("🎉 Sesión completada: %d/%d correctas.", correct, s.Total)
	if goal != nil {
		text += "\n\n" + renderGoal(goal, nil)
	}
	return text
}

func renderDetection(res *detection.Result) string {
	var sb strings.Builder
	p := res.Primary
	fmt.Fprintf(&sb, "📷 Encontré: %s → %s (%.0f%%)\n", p.Translation.Spanish, p.Translation.Quechua, p.Confidence*100)
	if res.Created {
		sb.WriteString("✨ Nueva palabra en tu vocabulario.")
	} else if res.Entry != nil {
		fmt.Fprintf(&sb, "Ya conoces esta palabra: %s (vista %d veces)", stars(res.Entry.MasteryLevel), res.Entry.TimesDetected)
	}
	if len(res.Secondary) > 0 {
		sb.WriteString("\n\nTambién veo:")
		for _, o := range res.Secondary {
			fmt.Fprintf(&sb, "\n• %s → %s", o.Translation.Spanish, o.Translation.Quechua)
		}
	}
	return sb.String()
}

func renderVocab(entries []models.VocabularyEntry) string {
	if len(entries) == 0 {
		return "Tu vocabulario está vacío. Envía una foto de un objeto para descubrir su nombre en quechua."
	}
	sum := mastery.Summarize(entries)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 Tu vocabulario: %d palabras\n🏆 Dominadas: %d\n📈 En progreso: %d\n✏️ Por practicar: %d\n",
		sum.TotalWords, sum.MasteredWords, sum.InProgress, sum.NeedsPractice)

	sorted := append([]models.VocabularyEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MasteryLevel != sorted[j].MasteryLevel {
			return sorted[i].MasteryLevel > sorted[j].MasteryLevel
		}
		return sorted[i].WordKey < sorted[j].WordKey
	})
	for i, e := range sorted {
		if i == vocabListLimit {
			fmt.Fprintf(&sb, "\n… y %d más", len(sorted)-vocabListLimit)
			break
		}
		sb.WriteString("\n" + stars(e.MasteryLevel) + " " + e.WordKey)
		if e.GlossWord != "" {
			sb.WriteString(" (" + e.GlossWord + ")")
		}
	}
	return sb.String()
}

// renderGoal formats the daily goal. profile may be nil.
func renderGoal(goal *models.DailyGoal, profile *models.Profile) string {
	var sb strings.Builder
	sb.WriteString("🎯 Meta de hoy\n")
	fmt.Fprintf(&sb, "📷 Detecciones: %d/%d\n", goal.WordsDetected, goal.DetectionGoal)
	fmt.Fprintf(&sb, "✏️ Práctica: %d/%d\n", goal.WordsPracticed, goal.PracticeGoal)
	fmt.Fprintf(&sb, "🏆 Dominadas: %d/%d", goal.WordsMastered, goal.MasteryGoal)
	if goal.IsComplete() {
		sb.WriteString("\n\n¡Meta cumplida! 🎉")
	}
	if profile != nil {
		fmt.Fprintf(&sb, "\n\n🔥 Racha: %d días (récord %d)", profile.StreakDays, profile.MaxStreak)
	}
	return sb.String()
}

func renderPreview(previews []mastery.AbandonmentPreview) string {
	var sb strings.Builder
	sb.WriteString("¿Seguro que quieres abandonar la sesión?")
	for _, p := range previews {
		if p.WouldDegrade {
			fmt.Fprintf(&sb, "\n📉 %s: bajaría de %s a %s", p.WordKey, stars(p.CurrentLevel), stars(p.PotentialLevel))
		} else {
			fmt.Fprintf(&sb, "\n🛡 %s: sin cambios", p.WordKey)
		}
	}
	return sb.String()
}

func renderAbandoned(list []session.Abandoned) string {
	degraded := 0
	for _, a := range list {
		if a.Degraded {
			degraded++
		}
	}
	if degraded == 0 {
		return "Sesión abandonada. Ninguna palabra perdió estrellas."
	}
	return fmt.Sprintf("Sesión abandonada. %d palabra(s) perdieron una estrella.", degraded)
}

func renderReminder(goal *models.DailyGoal) string {
	var pending []string
	if d := goal.DetectionGoal - goal.WordsDetected; d > 0 {
		pending = append(pending, fmt.Sprintf("📷 %d foto(s)", d))
	}
	if d := goal.PracticeGoal - goal.WordsPracticed; d > 0 {
		pending = append(pending, fmt.Sprintf("✏️ %d ejercicio(s)", d))
	}
	if d := goal.MasteryGoal - goal.WordsMastered; d > 0 {
		pending = append(pending, fmt.Sprintf("🏆 %d palabra(s) por dominar", d))
	}
	return "⏰ ¡Aún no cumples tu meta de hoy!\nTe falta:\n" + strings.Join(pending, "\n")
}
