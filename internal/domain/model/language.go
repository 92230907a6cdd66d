package model

// Language is the fixed set of languages submissions may be written in.
type Language string

const (
	LangPython Language = "python"
	LangJava   Language = "java"
	LangCpp    Language = "cpp"
	LangC      Language = "c"
)

// engineLanguageIDs maps each language onto the numeric id the execution
// engine uses for its compiler/runtime selection.
var engineLanguageIDs = map[Language]int{
	LangPython: 71,
	LangJava:   62,
	LangCpp:    54,
	LangC:      50,
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	_, ok := engineLanguageIDs[l]
	return ok
}

// EngineID returns the execution engine's numeric id for l.
// Callers must validate l first; an unsupported language returns 0.
func (l Language) EngineID() int {
	return engineLanguageIDs[l]
}

// SupportedLanguages lists the accepted language tags, for API responses
// and validation error messages.
func SupportedLanguages() []Language {
	return []Language{LangPython, LangJava, LangCpp, LangC}
}
