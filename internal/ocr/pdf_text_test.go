package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextFromContentStream(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 712 Td
(Master Services Agreement) Tj
0 -14 Td
[(Between Acme) -250 ( and Globex)] TJ
T*
(Effective \(as amended\) 2024) '
ET`)
	got := textFromContentStream(stream)
	assert.Equal(t, "Master Services Agreement Between Acme and Globex\nEffective (as amended) 2024", got)
}

func TestDecodePDFString(t *testing.T) {
	assert.Equal(t, "a b", decodePDFString([]byte(`a\040b`)))
	assert.Equal(t, "x\ny", decodePDFString([]byte(`x\ny`)))
	assert.Equal(t, `back\slash`, decodePDFString([]byte(`back\\slash`)))
	assert.Equal(t, "q", decodePDFString([]byte(`\q`)))
}

func TestPDFTextLayerRejectsGarbage(t *testing.T) {
	_, _, err := pdfTextLayer([]byte("%PDF-1.4 nonsense"))
	assert.Error(t, err)
}
