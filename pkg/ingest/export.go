// Package ingest replays existing conversations into a memory engine.
//
// Adapters turn a chat export or a legacy SQLite table into ordered turns;
// Run feeds them to an engine in chronological order.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/oceanbase/ltm-go/pkg/core"
)

// Default speaker names for chat exports.
const (
	DefaultUserName = "user"
	DefaultBotName  = "AI"
)

// ErrNoHistory indicates an export without a conversation history.
var ErrNoHistory = errors.New("export contains no conversation history")

type exportFile struct {
	Histories struct {
		Histories []struct {
			Msgs []exportMessage `json:"msgs"`
		} `json:"histories"`
	} `json:"histories"`
}

type exportMessage struct {
	Text string `json:"text"`
	Src  struct {
		IsHuman bool `json:"is_human"`
	} `json:"src"`
}

// ExportPairs reads a chat export and returns its exchanges as turns.
//
// Messages of the first history are paired: the latest human message and the
// latest reply form an exchange once both are present, and each exchange
// yields the user turn followed by the bot turn. Messages left unpaired at
// the end are dropped. The file is decoded as UTF-8, falling back to
// ISO-8859-1.
func ExportPairs(r io.Reader, userName, botName string) ([]core.Turn, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	export, err := decodeExport(data)
	if err != nil {
		return nil, err
	}
	if len(export.Histories.Histories) == 0 {
		return nil, ErrNoHistory
	}

	if userName == "" {
		userName = DefaultUserName
	}
	if botName == "" {
		botName = DefaultBotName
	}

	var (
		turns         []core.Turn
		prompt, reply string
	)
	for _, msg := range export.Histories.Histories[0].Msgs {
		if msg.Src.IsHuman {
			prompt = msg.Text
		} else {
			reply = msg.Text
		}
		if prompt != "" && reply != "" {
			turns = append(turns,
				core.Turn{Speaker: userName, Text: prompt},
				core.Turn{Speaker: botName, Text: reply},
			)
			prompt, reply = "", ""
		}
	}
	return turns, nil
}

// ExportFile opens path and calls ExportPairs.
func ExportFile(path, userName, botName string) ([]core.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ExportPairs(f, userName, botName)
}

func decodeExport(data []byte) (*exportFile, error) {
	var export exportFile
	if utf8.Valid(data) {
		if err := json.Unmarshal(data, &export); err == nil {
			return &export, nil
		}
	}

	latin1, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	export = exportFile{}
	if err := json.Unmarshal(latin1, &export); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}
	return &export, nil
}
