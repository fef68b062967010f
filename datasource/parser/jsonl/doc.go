// Package jsonl parses raw map extracts stored as JSON Lines, one entity per line. This parser uses https://github.com/tidwall/gjson to process data.
package jsonl
