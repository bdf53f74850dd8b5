package morphology

func englishClosedClass() map[string][]PartOfSpeech {
	return buildClosedClass(map[PartOfSpeech][]string{
		Article: {"a", "an", "the"},

		Preposition: {
			"of", "at", "by", "for", "with", "about", "against", "between",
			"into", "through", "during", "before", "after", "above", "below",
			"to", "from", "up", "down", "in", "out", "on", "off", "over", "under",
			"among", "across", "along", "around", "behind", "beyond", "near",
			"toward", "towards", "upon", "within", "without", "via", "onto",
		},

		Conjunction: {
			"and", "or", "but", "if", "while", "because", "as", "until",
			"than", "so", "nor", "yet", "although", "though", "unless",
			"whether", "whereas", "since",
		},

		Particle: {"not", "to"},

		Interjection: {
			"oh", "ah", "wow", "hey", "oops", "alas", "ouch", "hmm",
			"uh", "um", "hooray", "bravo",
		},
	})
}

func russianClosedClass() map[string][]PartOfSpeech {
	return buildClosedClass(map[PartOfSpeech][]string{
		Preposition: {
			"в", "во", "на", "с", "со", "к", "ко", "по", "о", "об", "обо",
			"от", "до", "из", "у", "за", "над", "под", "при", "про", "для",
			"без", "через", "между", "перед", "около", "среди", "вокруг",
			"после", "кроме", "вместо", "сквозь", "ради", "возле", "вдоль",
		},

		Conjunction: {
			"и", "а", "но", "или", "да", "что", "чтобы", "если", "когда",
			"хотя", "либо", "зато", "однако", "тоже", "также", "потому",
			"поэтому", "будто", "словно", "пока",
		},

		Particle: {
			"не", "ни", "же", "ли", "бы", "вот", "вон", "даже", "уже",
			"ещё", "еще", "только", "лишь", "разве", "неужели", "пусть",
			"ведь", "именно", "почти", "как",
		},

		Interjection: {
			"ах", "ох", "эх", "ой", "ай", "увы", "ура", "эй", "ого",
			"ага", "браво", "ух", "тьфу",
		},
	})
}

func buildClosedClass(groups map[PartOfSpeech][]string) map[string][]PartOfSpeech {
	closed := make(map[string][]PartOfSpeech)
	for tag, words := range groups {
		for _, word := range words {
			closed[word] = append(closed[word], tag)
		}
	}
	return closed
}
