package language

import "strings"

type entry struct {
	code2   string
	code3   []string
	display string
	words   []string
}

// Languages WhisperX ships alignment models for, plus the common aliases
// users type into a config file.
var languages = []entry{
	{"ja", []string{"jpn"}, "Japanese", []string{"japanese", "日本語"}},
	{"en", []string{"eng"}, "English", []string{"english"}},
	{"zh", []string{"zho", "chi"}, "Chinese", []string{"chinese", "mandarin", "中文"}},
	{"ko", []string{"kor"}, "Korean", []string{"korean", "한국어"}},
	{"fr", []string{"fra", "fre"}, "French", []string{"french"}},
	{"de", []string{"deu", "ger"}, "German", []string{"german"}},
	{"es", []string{"spa"}, "Spanish", []string{"spanish"}},
	{"it", []string{"ita"}, "Italian", []string{"italian"}},
	{"pt", []string{"por"}, "Portuguese", []string{"portuguese"}},
	{"ru", []string{"rus"}, "Russian", []string{"russian"}},
	{"nl", []string{"nld", "dut"}, "Dutch", []string{"dutch"}},
	{"uk", []string{"ukr"}, "Ukrainian", []string{"ukrainian"}},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		index[e.code2] = e
		for _, c := range e.code3 {
			index[c] = e
		}
		for _, w := range e.words {
			index[w] = e
		}
	}
}

func lookup(code string) *entry {
	return index[strings.ToLower(strings.TrimSpace(code))]
}

// ToISO2 converts a known code or language name to ISO 639-1. Unknown
// two-letter codes pass through; anything else yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable name, or the uppercased code when the
// language is unknown.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Hints returns OCR language hints for code: the ISO 639-1 code, and for
// Japanese also English, since scripts mix romaji cues and stage directions.
func Hints(code string) []string {
	iso := ToISO2(code)
	switch iso {
	case "":
		return nil
	case "ja":
		return []string{"ja", "en"}
	default:
		return []string{iso}
	}
}
