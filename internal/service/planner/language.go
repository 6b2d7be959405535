package planner

import (
	"regexp"
	"strings"
)

// targetLanguages 代码转换支持的目标语言，key 为目标中出现的写法
var targetLanguages = map[string]string{
	"python":     "python",
	"javascript": "javascript",
	"js":         "javascript",
	"typescript": "typescript",
	"ts":         "typescript",
	"java":       "java",
	"csharp":     "csharp",
	"c#":         "csharp",
	"cpp":        "cpp",
	"c++":        "cpp",
	"c":          "c",
	"go":         "go",
	"golang":     "go",
	"rust":       "rust",
	"php":        "php",
	"ruby":       "ruby",
	"swift":      "swift",
	"kotlin":     "kotlin",
	"scala":      "scala",
	"dart":       "dart",
	"r":          "r",
	"matlab":     "matlab",
	"perl":       "perl",
	"bash":       "bash",
	"powershell": "powershell",
	"sql":        "sql",
	"html":       "html",
	"css":        "css",
	"xml":        "xml",
	"json":       "json",
	"yaml":       "yaml",
	"yang":       "yang",
	"assembly":   "assembly",
	"fortran":    "fortran",
	"cobol":      "cobol",
	"pascal":     "pascal",
	"lisp":       "lisp",
	"prolog":     "prolog",
	"haskell":    "haskell",
	"erlang":     "erlang",
	"elixir":     "elixir",
	"clojure":    "clojure",
	"fsharp":     "fsharp",
	"f#":         "fsharp",
	"ocaml":      "ocaml",
	"nim":        "nim",
	"crystal":    "crystal",
	"zig":        "zig",
	"julia":      "julia",
	"odin":       "odin",
	"carbon":     "carbon",
	"mojo":       "mojo",
}

// ambiguousLanguages 同时是常见英文单词的写法，只在句末或后接 code/language 时才视为语言
var ambiguousLanguages = map[string]bool{
	"go": true,
	"r":  true,
	"c":  true,
}

var (
	targetLanguagePattern = regexp.MustCompile(`\b(?:to|into)\s+([a-z][a-z0-9#+]*)`)
	languageSuffixPattern = regexp.MustCompile(`^\s+(?:code|language|lang|source|please)\b`)
)

// DetectTargetLanguage 从 "to <语言>" / "into <语言>" 中识别目标语言
// 未识别时返回空字符串
func DetectTargetLanguage(goal string) string {
	lower := strings.ToLower(goal)
	for _, m := range targetLanguagePattern.FindAllStringSubmatchIndex(lower, -1) {
		token := lower[m[2]:m[3]]
		lang, ok := targetLanguages[token]
		if !ok {
			continue
		}
		if ambiguousLanguages[token] && !endsLanguagePhrase(lower[m[3]:]) {
			continue
		}
		return lang
	}
	return ""
}

// endsLanguagePhrase 语言写法之后是句末、标点或 code/language 等词
func endsLanguagePhrase(rest string) bool {
	if strings.TrimSpace(rest) == "" {
		return true
	}
	if strings.ContainsRune(".,;:!?)\r\n", rune(rest[0])) {
		return true
	}
	return languageSuffixPattern.MatchString(rest)
}
