package types

import (
	"errors"
	"testing"

	"github.com/horizondb/horizon/pkg/herrors"
)

func sampleRow() Row {
	return Row{
		IntegerValue(1),
		TextValue("Alice"),
		IntegerValue(30),
		NullValue(),
		BlobValue([]byte{0xDE, 0xAD}),
	}
}

func TestRowSerializeRoundTrip(t *testing.T) {
	row := sampleRow()
	got, err := DeserializeRow(row.Serialize(), len(row))
	if err != nil {
		t.Fatalf("DeserializeRow: %v", err)
	}
	if len(got) != len(row) {
		t.Fatalf("expected %d columns, got %d", len(row), len(got))
	}
	for i := range row {
		if !got[i].Equal(row[i]) {
			t.Fatalf("column %d changed: got %+v want %+v", i, got[i], row[i])
		}
	}
}

// Rows written before an ALTER TABLE carry the old column count; reading
// them against the current schema truncates dropped columns and NULL-pads
// added ones.
func TestRowSchemaEvolution(t *testing.T) {
	row := Row{IntegerValue(1), TextValue("Alice"), IntegerValue(30)}
	buf := row.Serialize()

	truncated, err := DeserializeRow(buf, 2)
	if err != nil {
		t.Fatalf("DeserializeRow (truncate): %v", err)
	}
	if len(truncated) != 2 {
		t.Fatalf("expected 2 columns after truncation, got %d", len(truncated))
	}
	if !truncated[1].Equal(TextValue("Alice")) {
		t.Fatalf("expected surviving columns unchanged, got %+v", truncated[1])
	}

	padded, err := DeserializeRow(buf, 5)
	if err != nil {
		t.Fatalf("DeserializeRow (pad): %v", err)
	}
	if len(padded) != 5 {
		t.Fatalf("expected 5 columns after padding, got %d", len(padded))
	}
	if padded[3].Tag != TagNull || padded[4].Tag != TagNull {
		t.Fatalf("expected NULL padding for missing columns, got %+v %+v", padded[3], padded[4])
	}
}

func TestDeserializeRowTruncatedHeader(t *testing.T) {
	if _, err := DeserializeRow([]byte{0x00}, 1); !errors.Is(err, herrors.ErrDeserialization) {
		t.Fatalf("expected ErrDeserialization, got %v", err)
	}
}

func TestDeserializeEmptyRow(t *testing.T) {
	got, err := DeserializeRow(Row{}.Serialize(), 0)
	if err != nil {
		t.Fatalf("DeserializeRow: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty row, got %d columns", len(got))
	}
}
