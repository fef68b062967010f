package jsonl

import (
	"bufio"
	"fmt"
	"sync"

	"github.com/go-sif/atlasgen/atlas"
	"github.com/tidwall/gjson"
)

// EntityIterator produces batches of entities from a JSONL stream
type EntityIterator struct {
	parser  *Parser
	scanner *bufio.Scanner
	hasNext bool
	line    int
	lock    sync.Mutex
}

// HasNext returns true iff this EntityIterator can produce another batch
func (it *EntityIterator) HasNext() bool {
	it.lock.Lock()
	defer it.lock.Unlock()
	return it.hasNext
}

// Next returns the next batch of entities, which may be empty at the end of the stream
func (it *EntityIterator) Next() ([]*atlas.Entity, error) {
	it.lock.Lock()
	defer it.lock.Unlock()
	batch := make([]*atlas.Entity, 0, it.parser.BatchSize())
	for len(batch) < it.parser.BatchSize() {
		if !it.scanner.Scan() {
			it.hasNext = false
			if err := it.scanner.Err(); err != nil {
				return nil, err
			}
			break
		}
		it.line++
		line := it.scanner.Bytes()
		if len(line) == 0 || (it.parser.conf.Comment != 0 && rune(line[0]) == it.parser.conf.Comment) {
			continue
		}
		if !gjson.ValidBytes(line) {
			return nil, fmt.Errorf("line %d is not valid JSON", it.line)
		}
		entity, err := parseEntity(gjson.ParseBytes(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", it.line, err)
		}
		batch = append(batch, entity)
	}
	return batch, nil
}
