package scanner

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// DecodeFunc analyzes one frame and reports a decoded symbol, if any.
type DecodeFunc func(image.Image) (string, bool)

var formatNames = map[string]gozxing.BarcodeFormat{
	"ean_13":   gozxing.BarcodeFormat_EAN_13,
	"ean_8":    gozxing.BarcodeFormat_EAN_8,
	"upc_a":    gozxing.BarcodeFormat_UPC_A,
	"upc_e":    gozxing.BarcodeFormat_UPC_E,
	"code_128": gozxing.BarcodeFormat_CODE_128,
	"code_39":  gozxing.BarcodeFormat_CODE_39,
	"code_93":  gozxing.BarcodeFormat_CODE_93,
	"codabar":  gozxing.BarcodeFormat_CODABAR,
	"i2of5":    gozxing.BarcodeFormat_ITF,
}

// DefaultFormats lists every symbol format the register accepts.
func DefaultFormats() []string {
	return []string{"ean_13", "ean_8", "upc_a", "upc_e", "code_128", "code_39", "code_93", "codabar", "i2of5"}
}

// NewOneDDecoder builds a decoder for the named one-dimensional formats.
// Unknown names are ignored; an empty or fully unknown list falls back to
// DefaultFormats.
func NewOneDDecoder(formats []string) DecodeFunc {
	if len(formats) == 0 {
		formats = DefaultFormats()
	}
	possible := make([]gozxing.BarcodeFormat, 0, len(formats))
	for _, name := range formats {
		if f, ok := formatNames[name]; ok {
			possible = append(possible, f)
		}
	}
	if len(possible) == 0 {
		return NewOneDDecoder(nil)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: possible,
		gozxing.DecodeHintType_TRY_HARDER:       true,
	}
	reader := oned.NewMultiFormatOneDReader(hints)

	return func(img image.Image) (string, bool) {
		bmp, err := gozxing.NewBinaryBitmapFromImage(img)
		if err != nil {
			return "", false
		}
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			// Most frames simply contain no readable barcode.
			return "", false
		}
		text := result.GetText()
		return text, text != ""
	}
}
