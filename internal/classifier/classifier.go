// Package classifier labels ingested documents as Bill of Lading or commercial
// invoice from their text layer and file name.
package classifier

import (
	"math"
	"strings"

	"aforo/internal/domain"
	"aforo/internal/pdftext"
	"aforo/internal/textnorm"
)

// DefaultThreshold is the minimum confidence for a label to stick.
const DefaultThreshold = 0.7

// evidence at which a one-sided score reaches full confidence
const saturation = 6.0

type keyword struct {
	phrase string
	weight float64
}

var blKeywords = []keyword{
	{"bill of lading", 3},
	{"ocean bill", 2},
	{"sea waybill", 2},
	{"b l", 2},
	{"bl no", 2},
	{"conocimiento de embarque", 3},
	{"notify party", 2},
	{"port of loading", 2},
	{"port of discharge", 2},
	{"place of receipt", 1},
	{"laden on board", 2},
	{"shipped on board", 2},
	{"shipper", 1},
	{"consignee", 1},
	{"vessel", 1},
	{"voyage", 1},
	{"container", 1},
	{"seal", 0.5},
	{"gross weight", 0.5},
	{"freight prepaid", 1},
	{"freight collect", 1},
}

var invoiceKeywords = []keyword{
	{"commercial invoice", 3},
	{"invoice", 2},
	{"factura", 2},
	{"factura comercial", 2},
	{"invoice no", 1},
	{"invoice number", 1},
	{"unit price", 2},
	{"precio unitario", 2},
	{"total amount", 1},
	{"amount", 0.5},
	{"quantity", 1},
	{"qty", 1},
	{"subtotal", 1},
	{"incoterm", 1},
	{"incoterms", 1},
	{"fob", 0.5},
	{"part number", 1},
	{"sold to", 1},
	{"bill to", 1},
}

var blFileHints = []string{"bl", "bol", "bill", "lading", "hbl", "mbl", "awb"}
var invoiceFileHints = []string{"inv", "invoice", "factura", "ci", "fact"}

// Result is the outcome of classifying one document.
type Result struct {
	Type         domain.DocumentType
	Confidence   float64
	PageCount    int
	BLScore      float64
	InvoiceScore float64
}

// LowConfidence reports whether the document must wait for a manual type.
func (r Result) LowConfidence() bool {
	return r.Type == domain.DocumentTypeUnknown
}

// Classifier scores keyword sets against the text layer and the file name.
type Classifier struct {
	threshold float64
}

// New creates a Classifier. A non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{threshold: threshold}
}

// Classify labels a document. Below the threshold the label is unknown and
// Confidence still reports the best candidate's score.
func (c *Classifier) Classify(fileName string, layer pdftext.Layer) Result {
	text := textnorm.Fold(layer.Text)
	bl := score(text, blKeywords) + fileScore(fileName, blFileHints)
	inv := score(text, invoiceKeywords) + fileScore(fileName, invoiceFileHints)

	res := Result{
		Type:         domain.DocumentTypeUnknown,
		PageCount:    layer.PageCount,
		BLScore:      bl,
		InvoiceScore: inv,
	}
	if bl == 0 && inv == 0 {
		return res
	}

	winner, loser, label := bl, inv, domain.DocumentTypeBL
	if inv > bl {
		winner, loser, label = inv, bl, domain.DocumentTypeInvoice
	}
	share := winner / (winner + loser)
	res.Confidence = round2(share * math.Min(1, winner/saturation))
	if winner == loser {
		res.Confidence = round2(0.5 * math.Min(1, winner/saturation))
		return res
	}
	if res.Confidence >= c.threshold {
		res.Type = label
	}
	return res
}

func score(text string, keywords []keyword) float64 {
	if text == "" {
		return 0
	}
	var total float64
	for _, k := range keywords {
		if textnorm.ContainsPhrase(text, k.phrase) {
			total += k.weight
		}
	}
	return total
}

// fileScore adds 2 when any folded file-name token matches a hint.
func fileScore(fileName string, hints []string) float64 {
	name := fileName
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	tokens := strings.Fields(textnorm.Fold(splitCamelDigits(name)))
	for _, tok := range tokens {
		for _, h := range hints {
			if tok == h {
				return 2
			}
		}
	}
	return 0
}

// splitCamelDigits separates letter runs from digit runs so "INV2024" yields "INV 2024".
func splitCamelDigits(s string) string {
	var b strings.Builder
	var prevDigit, started bool
	for _, r := range s {
		isDigit := r >= '0' && r <= '9'
		if started && isDigit != prevDigit {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prevDigit = isDigit
		started = true
	}
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
