package resolver

import (
	"fmt"
	"strings"
)

// localeTable holds the fixed keyword list and offline-mode replies for one
// locale. The tables are part of the fallback's deterministic contract;
// changing them changes resolver output byte-for-byte.
type localeTable struct {
	listKeywords     []string
	offlineAll       string
	offlineMatched   string
	offlineAmbiguous string
	offlineNoMatch   string
}

var locales = map[string]localeTable{
	"en": {
		listKeywords:     []string{"list", "help", "show", "what", "commands"},
		offlineAll:       "Offline mode: here is everything I can run.",
		offlineMatched:   "Offline mode: matched %s.",
		offlineAmbiguous: "Offline mode: multiple matches, please clarify.",
		offlineNoMatch:   "Offline mode: could not recognize that, try 'list'.",
	},
	"zh": {
		listKeywords:     []string{"列出", "帮助", "查看", "有哪些", "命令"},
		offlineAll:       "离线模式:以下是所有可执行的操作。",
		offlineMatched:   "离线模式:已匹配 %s。",
		offlineAmbiguous: "离线模式:找到多个匹配,请进一步说明。",
		offlineNoMatch:   "离线模式:无法识别,可以试试「list」。",
	},
}

// tableFor returns the locale table, falling back to English. Region
// subtags are ignored: "zh-CN" selects "zh".
func tableFor(locale string) localeTable {
	if table, ok := locales[locale]; ok {
		return table
	}

	if base, _, found := strings.Cut(locale, "-"); found {
		if table, ok := locales[base]; ok {
			return table
		}
	}

	return locales["en"]
}

func (t localeTable) matched(name string) string {
	return fmt.Sprintf(t.offlineMatched, name)
}
