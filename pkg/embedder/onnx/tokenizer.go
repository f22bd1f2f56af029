package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// wordPiece is a minimal BERT WordPiece tokenizer over a tokenizer.json vocabulary.
type wordPiece struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	unk   int64
}

func loadWordPiece(path string) (*wordPiece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}

	var file struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
	}

	wp := &wordPiece{vocab: file.Model.Vocab, cls: 101, sep: 102, unk: 100}
	if id, ok := wp.vocab["[CLS]"]; ok {
		wp.cls = id
	}
	if id, ok := wp.vocab["[SEP]"]; ok {
		wp.sep = id
	}
	if id, ok := wp.vocab["[UNK]"]; ok {
		wp.unk = id
	}
	return wp, nil
}

// encode returns input ids wrapped in [CLS] ... [SEP], truncated to maxLen.
func (t *wordPiece) encode(text string, maxLen int) []int64 {
	ids := []int64{t.cls}
	for _, word := range splitWords(strings.ToLower(text)) {
		ids = append(ids, t.word(word)...)
		if len(ids) >= maxLen-1 {
			ids = ids[:maxLen-1]
			break
		}
	}
	return append(ids, t.sep)
}

// word greedily matches the longest vocabulary prefixes, continuing with "##" pieces.
func (t *wordPiece) word(w string) []int64 {
	if id, ok := t.vocab[w]; ok {
		return []int64{id}
	}

	var ids []int64
	runes := []rune(w)
	for start := 0; start < len(runes); {
		end := len(runes)
		var id int64 = -1
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if v, ok := t.vocab[piece]; ok {
				id = v
				break
			}
		}
		if id < 0 {
			// BERT maps the whole word to [UNK] when any piece is unknown
			return []int64{t.unk}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

// splitWords separates punctuation into its own tokens the way BERT's basic tokenizer does.
func splitWords(text string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
