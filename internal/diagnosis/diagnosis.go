// Package diagnosis turns classifier output into what the result pages show:
// lesion names, risk tiers, explanation lines, recommendations and the
// differential list.
package diagnosis

import "strings"

// Code is one of the seven lesion classes the classifier emits.
type Code int

const (
	Akiec Code = iota
	BCC
	BKL
	DF
	Mel
	NV
	Vasc

	numCodes
)

// Codes lists every class in classifier output order.
var Codes = [...]Code{Akiec, BCC, BKL, DF, Mel, NV, Vasc}

type codeInfo struct {
	key      string
	name     string
	tier     Tier
	rank     int // position in the HAM10000 listing, breaks score ties
	features []Feature
}

var genericFeatures = []Feature{
	{Aspect: AspectBorder, Text: "Standard morphological features analyzed"},
	{Aspect: AspectColor, Text: "Color pattern assessment completed"},
	{Aspect: AspectSize, Text: "Size and symmetry evaluated"},
}

var codeTable = [...]codeInfo{
	Akiec: {
		key: "akiec", name: "Actinic Keratosis", tier: TierHigh, rank: 4,
		features: []Feature{
			{Aspect: AspectBorder, Text: "Rough, scaly texture detected"},
			{Aspect: AspectColor, Text: "Red or brown crusty surface"},
			{Aspect: AspectSize, Text: "Small lesion size (< 1cm typically)"},
		},
	},
	BCC: {
		key: "bcc", name: "Basal Cell Carcinoma", tier: TierHigh, rank: 3,
		features: []Feature{
			{Aspect: AspectBorder, Text: "Pearl-like appearance with rolled borders"},
			{Aspect: AspectColor, Text: "Pink or flesh-colored pigmentation"},
			{Aspect: AspectShape, Text: "Translucent quality with visible blood vessels"},
		},
	},
	BKL: {key: "bkl", name: "Benign Keratosis", tier: TierModerate, rank: 2, features: genericFeatures},
	DF:  {key: "df", name: "Dermatofibroma", tier: TierModerate, rank: 6, features: genericFeatures},
	Mel: {
		key: "mel", name: "Melanoma", tier: TierHigh, rank: 1,
		features: []Feature{
			{Aspect: AspectShape, Text: "Asymmetric shape detected in lesion structure"},
			{Aspect: AspectBorder, Text: "Irregular and poorly defined borders observed"},
			{Aspect: AspectColor, Text: "Multiple color variations present (brown, black, red)"},
			{Aspect: AspectSize, Text: "Diameter exceeds 6mm threshold"},
		},
	},
	NV: {
		key: "nv", name: "Melanocytic Nevus", tier: TierLow, rank: 0,
		features: []Feature{
			{Aspect: AspectShape, Text: "Symmetric lesion structure"},
			{Aspect: AspectBorder, Text: "Regular, well-defined borders"},
			{Aspect: AspectColor, Text: "Uniform color distribution"},
			{Aspect: AspectSize, Text: "Stable size over time"},
		},
	},
	Vasc: {key: "vasc", name: "Vascular Lesion", tier: TierModerate, rank: 5, features: genericFeatures},
}

// Fails to compile when codeTable and the Code constants drift apart.
var _ = [1]struct{}{}[len(codeTable)-int(numCodes)]

func (c Code) valid() bool { return c >= 0 && c < numCodes }

// String returns the classifier's wire code ("mel", "nv", ...).
func (c Code) String() string {
	if !c.valid() {
		return "unknown"
	}
	return codeTable[c].key
}

func (c Code) DisplayName() string {
	if !c.valid() {
		return "Unknown"
	}
	return codeTable[c].name
}

// Tier is fixed per class; it does not depend on confidence.
func (c Code) Tier() Tier {
	if !c.valid() {
		return TierHigh
	}
	return codeTable[c].tier
}

func (c Code) Features() []Feature {
	if !c.valid() {
		return genericFeatures
	}
	out := make([]Feature, len(codeTable[c].features))
	copy(out, codeTable[c].features)
	return out
}

func ParseCode(s string) (Code, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Codes {
		if codeTable[c].key == key {
			return c, true
		}
	}
	return 0, false
}

// DisplayNameFor maps a wire code to its name, falling back to the code.
func DisplayNameFor(s string) string {
	if c, ok := ParseCode(s); ok {
		return c.DisplayName()
	}
	return s
}

type Aspect string

const (
	AspectShape  Aspect = "shape"
	AspectBorder Aspect = "border"
	AspectColor  Aspect = "color"
	AspectSize   Aspect = "size"
)

// Feature is one line of the "why" explanation.
type Feature struct {
	Aspect Aspect
	Text   string
}
