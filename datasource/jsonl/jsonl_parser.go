package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/go-sif/tablegen"
	"github.com/tidwall/gjson"
)

// Tokenizer splits raw text into tokens
type Tokenizer interface {
	Tokenize(text string) []string
}

// ParserConf configures a JSONL Parser
type ParserConf struct {
	HeaderLines   int  // The number of lines to ignore from the beginning of each file. Defaults to 0.
	Comment       rune // Lines beginning with the comment character are ignored. Defaults to no comment character.
	MaxBufferSize int  // Maximum size in bytes of the buffer used to read lines from the file
	SkipInvalid   bool // Skip lines which are not valid examples instead of failing
}

// Parser produces Examples from JSONL data
type Parser struct {
	conf      *ParserConf
	tokenizer Tokenizer
}

// CreateParser returns a new JSONL Parser which tokenizes text with tokenizer
func CreateParser(conf *ParserConf, tokenizer Tokenizer) *Parser {
	if conf.MaxBufferSize == 0 {
		// table lines are often far longer than bufio.MaxScanTokenSize
		conf.MaxBufferSize = 64 * 1024 * 1024
	}
	return &Parser{conf: conf, tokenizer: tokenizer}
}

// Parse returns an iterator over the Examples in r
func (p *Parser) Parse(r io.Reader) (*ExampleIterator, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), p.conf.MaxBufferSize)
	// ignore header lines, if configured to do so
	line := 0
	for i := 0; i < p.conf.HeaderLines; i++ {
		scanner.Scan()
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		line++
	}
	return &ExampleIterator{parser: p, scanner: scanner, line: line}, nil
}

// ParseExample parses a single line of JSON into an Example
func (p *Parser) ParseExample(line string) (*tablegen.Example, error) {
	if !gjson.Valid(line) {
		return nil, fmt.Errorf("line is not valid JSON")
	}
	row := gjson.Parse(line)
	if !row.IsObject() {
		return nil, fmt.Errorf("line is not a JSON object")
	}
	uuid := row.Get("uuid")
	if !uuid.Exists() {
		return nil, fmt.Errorf("example has no uuid")
	}
	example := &tablegen.Example{UUID: uuid.String()}
	for _, col := range row.Get("header").Array() {
		sample := col.Get("sample_value")
		if sample.IsObject() {
			sample = sample.Get("value")
		}
		c := tablegen.Column{
			Name:        col.Get("name").String(),
			Type:        col.Get("type").String(),
			SampleValue: sample.String(),
		}
		c.NameTokens = p.tokenizer.Tokenize(c.Name)
		c.SampleTokens = p.tokenizer.Tokenize(c.SampleValue)
		example.Header = append(example.Header, c)
	}
	example.ContextBefore = p.parseSentences(row.Get("context_before"))
	example.ContextAfter = p.parseSentences(row.Get("context_after"))
	return example, nil
}

// parseSentences tokenizes each sentence, dropping sentences without tokens
func (p *Parser) parseSentences(val gjson.Result) [][]string {
	var sents [][]string
	for _, s := range val.Array() {
		if toks := p.tokenizer.Tokenize(s.String()); len(toks) > 0 {
			sents = append(sents, toks)
		}
	}
	return sents
}

// Glob returns the sorted list of files matching pattern, or an error if there are none
func Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("glob %s produced 0 files", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}
