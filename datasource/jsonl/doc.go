// Package jsonl parses a JSON Lines table corpus into tokenized Examples. This parser uses
// https://github.com/tidwall/gjson to process data. Each line is an object of the form
//
//	{"uuid": "...", "header": [{"name": "...", "type": "...", "sample_value": "..."}],
//	 "context_before": ["sentence", ...], "context_after": ["sentence", ...]}
//
// where sample_value may also be an object with a "value" field.
package jsonl
