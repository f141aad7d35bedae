package tfidf

// stopwordsByLanguage holds function words for the languages the pipeline
// ships with. Entries are normalized when the set is built.
var stopwordsByLanguage = map[string][]string{
	"en": {
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	},
	"fr": {
		"le", "la", "les", "un", "une", "des", "du", "de", "et", "ou", "mais", "est", "sont", "était", "dans", "pour", "par", "sur", "au", "aux", "avec", "ce", "cet", "cette", "ces", "il", "elle", "ils", "elles", "qui", "que", "ne", "pas", "se", "sa", "son", "ses", "leur", "leurs", "en", "y",
	},
	"tr": {
		"ve", "veya", "ama", "bir", "bu", "şu", "o", "da", "de", "ile", "için", "gibi", "çok", "daha", "en", "mi", "mı", "mu", "mü", "ne", "ki", "olan", "olarak", "hem", "her",
	},
	"hi": {
		"का", "की", "के", "है", "हैं", "था", "थी", "थे", "में", "और", "से", "को", "पर", "यह", "वह", "ये", "वे", "एक", "भी", "नहीं", "तो", "ही", "या", "लिए", "तक", "कि",
	},
}

func defaultStopwords() map[string]struct{} {
	m := make(map[string]struct{})
	for _, words := range stopwordsByLanguage {
		for _, w := range words {
			m[normalizeText(w)] = struct{}{}
		}
	}
	return m
}
