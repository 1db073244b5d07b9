package compiler

import (
	"strconv"

	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

const (
	DefaultMaxChoices        = 3
	DefaultDialogueKeyPrefix = "Dialogue"
	DefaultOptionKeyPrefix   = "Option"
)

// Options configures a compilation.
type Options struct {
	// UseTranslationKeys emits key-form text instead of inline text.
	UseTranslationKeys bool
	// MaxChoices is the option count above which select nodes are flagged.
	MaxChoices int
	// DialogueKeyPrefix and OptionKeyPrefix build keys for nodes that carry
	// none: <prefix>_<guid> for dialogue, <prefix>_<guid><i> for options.
	DialogueKeyPrefix string
	OptionKeyPrefix   string
	// Tables is stored on the compiled asset.
	Tables scenario.Tables
}

func DefaultOptions() Options {
	return Options{
		MaxChoices:        DefaultMaxChoices,
		DialogueKeyPrefix: DefaultDialogueKeyPrefix,
		OptionKeyPrefix:   DefaultOptionKeyPrefix,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxChoices <= 0 {
		o.MaxChoices = DefaultMaxChoices
	}
	if o.DialogueKeyPrefix == "" {
		o.DialogueKeyPrefix = DefaultDialogueKeyPrefix
	}
	if o.OptionKeyPrefix == "" {
		o.OptionKeyPrefix = DefaultOptionKeyPrefix
	}
	return o
}

// DialogueKey is the generated translation key of a text node.
func (o Options) DialogueKey(guid string) string {
	return o.withDefaults().DialogueKeyPrefix + "_" + guid
}

// OptionKey is the generated translation key of option i of a select node.
func (o Options) OptionKey(guid string, i int) string {
	return o.withDefaults().OptionKeyPrefix + "_" + guid + strconv.Itoa(i)
}
