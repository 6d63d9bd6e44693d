// Package textnorm canonicalizes Japanese reply/chat text before it reaches
// moderation, synthesis, or trigger matching: half-width katakana is widened,
// full-width alphanumerics are narrowed, and speech-only replacements fix
// pronunciation of proper nouns.
package textnorm

import "strings"

var halfToFullKana = map[rune]rune{
	'ｱ': 'ア', 'ｲ': 'イ', 'ｳ': 'ウ', 'ｴ': 'エ', 'ｵ': 'オ',
	'ｶ': 'カ', 'ｷ': 'キ', 'ｸ': 'ク', 'ｹ': 'ケ', 'ｺ': 'コ',
	'ｻ': 'サ', 'ｼ': 'シ', 'ｽ': 'ス', 'ｾ': 'セ', 'ｿ': 'ソ',
	'ﾀ': 'タ', 'ﾁ': 'チ', 'ﾂ': 'ツ', 'ﾃ': 'テ', 'ﾄ': 'ト',
	'ﾅ': 'ナ', 'ﾆ': 'ニ', 'ﾇ': 'ヌ', 'ﾈ': 'ネ', 'ﾉ': 'ノ',
	'ﾊ': 'ハ', 'ﾋ': 'ヒ', 'ﾌ': 'フ', 'ﾍ': 'ヘ', 'ﾎ': 'ホ',
	'ﾏ': 'マ', 'ﾐ': 'ミ', 'ﾑ': 'ム', 'ﾒ': 'メ', 'ﾓ': 'モ',
	'ﾔ': 'ヤ', 'ﾕ': 'ユ', 'ﾖ': 'ヨ',
	'ﾗ': 'ラ', 'ﾘ': 'リ', 'ﾙ': 'ル', 'ﾚ': 'レ', 'ﾛ': 'ロ',
	'ﾜ': 'ワ', 'ｦ': 'ヲ', 'ﾝ': 'ン',
	'ｧ': 'ァ', 'ｨ': 'ィ', 'ｩ': 'ゥ', 'ｪ': 'ェ', 'ｫ': 'ォ',
	'ｬ': 'ャ', 'ｭ': 'ュ', 'ｮ': 'ョ', 'ｯ': 'ッ',
	'ﾞ': '゛', 'ﾟ': '゜',
	'ｰ': 'ー', '｡': '。', '｢': '「', '｣': '」', '､': '、', '･': '・',
}

// WidenKana converts half-width katakana (and half-width punctuation) to
// full-width; every other rune passes through unchanged.
func WidenKana(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if full, ok := halfToFullKana[r]; ok {
			b.WriteRune(full)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NarrowAlphanumeric converts full-width ASCII letters and digits to their
// half-width forms; every other rune passes through unchanged.
func NarrowAlphanumeric(input string) string {
	runes := []rune(input)
	for i, r := range runes {
		switch {
		case r >= 'Ａ' && r <= 'Ｚ':
			runes[i] = r - 'Ａ' + 'A'
		case r >= 'ａ' && r <= 'ｚ':
			runes[i] = r - 'ａ' + 'a'
		case r >= '０' && r <= '９':
			runes[i] = r - '０' + '0'
		}
	}
	return string(runes)
}

// Canonicalize applies the fixed two-stage normalization used on reply text:
// kana widening first, then alphanumeric narrowing.
func Canonicalize(input string) string {
	return NarrowAlphanumeric(WidenKana(input))
}

// ContainsAny reports whether text contains at least one of the words.
// Empty words never match.
func ContainsAny(text string, words []string) bool {
	for _, word := range words {
		if word != "" && strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// Replacement is one literal speech-text substitution.
type Replacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ApplyReplacements rewrites text for the synthesis request only; display
// labels keep the original spelling.
func ApplyReplacements(text string, replacements []Replacement) string {
	for _, r := range replacements {
		if r.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return text
}
