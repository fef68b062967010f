package jsonl

import (
	"bufio"
	"io"

	"github.com/go-sif/atlasgen/atlas"
)

// ParserConf configures a JSONL Parser, suitable for raw extract data
type ParserConf struct {
	BatchSize     int  // The maximum number of entities per batch. Defaults to 128.
	HeaderLines   int  // The number of lines to ignore from the beginning of each file. Defaults to 0.
	Comment       rune // Lines beginning with the comment character are ignored. Defaults to no comment character.
	MaxBufferSize int  // Maximum size in bytes of the buffer used to read lines from the file
}

// Parser produces entities from JSONL data
type Parser struct {
	conf *ParserConf
}

// CreateParser returns a new JSONL Parser. Each line is an entity of the form
// {"id":1,"type":"line","tags":{...},"nodes":[{"id":1,"lon":0,"lat":0}],"members":[...]};
// points may give "lon" and "lat" directly instead of "nodes".
func CreateParser(conf *ParserConf) *Parser {
	if conf.BatchSize == 0 {
		conf.BatchSize = 128
	}
	if conf.MaxBufferSize == 0 {
		conf.MaxBufferSize = bufio.MaxScanTokenSize
	}
	return &Parser{conf: conf}
}

// BatchSize returns the maximum size of batches produced by this Parser
func (p *Parser) BatchSize() int {
	return p.conf.BatchSize
}

// Parse parses JSONL data to produce batches of entities
func (p *Parser) Parse(r io.Reader) (*EntityIterator, error) {
	// start parsing by creating a scanner
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), p.conf.MaxBufferSize)
	// ignore header lines, if configured to do so
	for i := 0; i < p.conf.HeaderLines; i++ {
		scanner.Scan()
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	return &EntityIterator{
		parser:  p,
		scanner: scanner,
		hasNext: true,
	}, nil
}

// ParseAll parses every entity of JSONL data
func (p *Parser) ParseAll(r io.Reader) ([]*atlas.Entity, error) {
	iterator, err := p.Parse(r)
	if err != nil {
		return nil, err
	}
	var result []*atlas.Entity
	for iterator.HasNext() {
		batch, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}
