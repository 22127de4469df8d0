package tesseract

import (
	"strconv"
	"strings"

	"github.com/figprep/figprep/internal/bbox"
)

// TSV column layout produced by the engine's "tsv" config:
// level page_num block_num par_num line_num word_num left top width height conf text.
const (
	tsvColLevel = 0
	tsvColLeft  = 6
	tsvColTop   = 7
	tsvColW     = 8
	tsvColH     = 9
	tsvColConf  = 10
	tsvColText  = 11
	tsvColumns  = 12

	// Word rows carry level 5; lower levels are structural (page/block/par/line).
	tsvWordLevel = 5
)

// ParseTSV extracts word records from raw TSV output. Header lines, structural
// rows, rows with conf -1, and malformed rows are skipped rather than treated
// as errors; the engine emits all of these routinely.
func ParseTSV(data string) ([]Word, error) {
	var words []Word
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < tsvColumns {
			continue
		}

		level, err := strconv.Atoi(fields[tsvColLevel])
		if err != nil || level != tsvWordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(fields[tsvColConf], 64)
		if err != nil || conf < 0 {
			continue
		}

		left, err1 := strconv.Atoi(fields[tsvColLeft])
		top, err2 := strconv.Atoi(fields[tsvColTop])
		w, err3 := strconv.Atoi(fields[tsvColW])
		h, err4 := strconv.Atoi(fields[tsvColH])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || w <= 0 || h <= 0 {
			continue
		}

		// The text column may itself contain tabs when the token does; rejoin.
		text := strings.Join(fields[tsvColText:], "\t")

		words = append(words, Word{
			Text: text,
			Conf: conf,
			Box:  bbox.New(left, top, left+w, top+h),
		})
	}
	return words, nil
}
