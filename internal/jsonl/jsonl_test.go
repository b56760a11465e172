package jsonl

import (
	"bytes"
	"io"
	"testing"
)

type record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func TestWriteReadRoundTripGzip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, GzipCodec{})
	if err != nil {
		t.Fatal(err)
	}
	want := []record{{ID: "a", Text: "hello"}, {ID: "b", Text: "world"}}
	for _, r := range want {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf, GzipCodec{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var got []record
	for {
		var rec record
		err := r.Next(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, rec)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReaderSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, PassthroughCodec{})
	if err != nil {
		t.Fatal(err)
	}
	w.Write(record{ID: "a"})
	w.w.WriteByte('\n')
	w.Write(record{ID: "b"})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf, PassthroughCodec{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	count := 0
	for {
		var rec record
		err := r.Next(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 non-blank records, got %d", count)
	}
}

func TestReaderEOFOnEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, GzipCodec{})
	w.Close()

	r, err := NewReader(&buf, GzipCodec{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var rec record
	if err := r.Next(&rec); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
