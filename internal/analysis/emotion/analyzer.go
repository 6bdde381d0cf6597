package emotion

import (
	"strings"
)

// Label 情绪标签，取值与 go-emotions 分类器保持一致。
type Label string

const (
	Neutral     Label = "neutral"
	Joy         Label = "joy"
	Sadness     Label = "sadness"
	Grief       Label = "grief"
	Anger       Label = "anger"
	Fear        Label = "fear"
	Nervousness Label = "nervousness"
	Gratitude   Label = "gratitude"
	Excitement  Label = "excitement"
)

// Decision 给出情绪识别结果。
type Decision struct {
	Label      Label
	Score      int
	Confidence float64
}

// labelOrder 决定同分时的优先级，越靠前越优先。
var labelOrder = []Label{Grief, Fear, Sadness, Anger, Nervousness, Gratitude, Excitement, Joy}

var keywordBuckets = map[Label][]string{
	Joy: {
		"فرحان", "فرحانة", "سعيد", "سعيدة", "مبسوط", "مبسوطة", "فرح", "ممتاز", "وناسة",
		"happy", "glad", "great", "awesome", "good news",
	},
	Sadness: {
		"حزن", "حزين", "حزينة", "زعلان", "زعلانة", "متضايق", "متضايقة", "ضيقة", "مكتئب", "مكتئبة",
		"اكتئاب", "وحيد", "وحيدة", "وحدي", "ابكي", "أبكي", "بكيت", "تعبان نفسياً", "محبط", "محبطة",
		"sad", "lonely", "depressed", "unhappy", "cry", "hopeless", "hurt",
	},
	Grief: {
		"توفى", "توفي", "توفت", "وفاة", "فقدت", "الله يرحمه", "الله يرحمها", "رحمه الله",
		"passed away", "funeral", "lost my",
	},
	Anger: {
		"معصب", "معصبة", "غاضب", "غاضبة", "قهر", "مقهور", "مقهورة", "قهرني", "زهقت", "كرهت",
		"angry", "furious", "mad at", "annoyed", "hate",
	},
	Fear: {
		"خايف", "خايفة", "خوف", "أخاف", "اخاف", "مرعوب", "مرعوبة", "رعب",
		"afraid", "scared", "terrified", "fear",
	},
	Nervousness: {
		"قلق", "قلقان", "قلقانة", "متوتر", "متوترة", "توتر", "مضغوط", "مضغوطة", "ما أقدر أنام", "ما اقدر انام",
		"anxious", "nervous", "stressed", "worried", "panic",
	},
	Gratitude: {
		"شكرا", "شكراً", "مشكور", "مشكورة", "يعطيك العافية", "تسلم", "تسلمين",
		"thank you", "thanks", "grateful",
	},
	Excitement: {
		"متحمس", "متحمسة", "حماس", "ما أقدر أنتظر", "ما اقدر انتظر",
		"excited", "can't wait", "wow",
	},
}

// Analyze 基于关键词推断一句话的主要情绪，没有命中时返回 neutral。
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Label: Neutral}
	}

	scores := make(map[Label]int)
	total := 0
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label] += 3
				total += 3
			}
		}
	}

	// 感叹号只作为兴奋的弱信号
	if exclamations := strings.Count(text, "!") + strings.Count(text, "！"); exclamations > 1 {
		scores[Excitement] += exclamations
		total += exclamations
	}

	best := Neutral
	bestScore := 0
	for _, label := range labelOrder {
		if s := scores[label]; s > bestScore {
			best = label
			bestScore = s
		}
	}

	if bestScore == 0 {
		return Decision{Label: Neutral}
	}

	return Decision{
		Label:      best,
		Score:      bestScore,
		Confidence: float64(bestScore) / float64(total),
	}
}
