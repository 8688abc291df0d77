package discovery

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRevisionOperations_UnmarshalJSON(t *testing.T) {
	raw := `[
		{"type": "replace", "deviceDescriptions": [
			{"identifiers": {"macAddress": "AA:AA:AA:AA:AA:01"}, "description": "camera"}
		]},
		{"type": "upsert", "deviceDescriptions": [
			{"identifiers": {"macAddress": "AA:AA:AA:AA:AA:02"}, "description": "plug"}
		]},
		{"type": "delete", "macAddresses": ["AA:AA:AA:AA:AA:01"]}
	]`

	var ops RevisionOperations
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("len(ops) = %d, want 3", len(ops))
	}

	if _, ok := ops[0].(*ReplaceOperation); !ok {
		t.Errorf("ops[0] is %T, want *ReplaceOperation", ops[0])
	}
	if _, ok := ops[1].(*UpsertOperation); !ok {
		t.Errorf("ops[1] is %T, want *UpsertOperation", ops[1])
	}
	del, ok := ops[2].(*DeleteOperation)
	if !ok {
		t.Fatalf("ops[2] is %T, want *DeleteOperation", ops[2])
	}
	if len(del.MACAddresses) != 1 || del.MACAddresses[0] != "AA:AA:AA:AA:AA:01" {
		t.Errorf("delete MACs = %v, want [AA:AA:AA:AA:AA:01]", del.MACAddresses)
	}
}

func TestRevisionOperations_UnmarshalUnknownType(t *testing.T) {
	var ops RevisionOperations
	err := json.Unmarshal([]byte(`[{"type": "truncate"}]`), &ops)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Unmarshal() error = %v, want ErrUnknownOperation", err)
	}
}

func TestRevision_Apply(t *testing.T) {
	t.Run("operations apply in order", func(t *testing.T) {
		coll := NewCollection("repo-north")
		coll.Add(testDescription("AA:AA:AA:AA:AA:01", "old camera", 1))

		revision := &Revision{
			ReferenceIDs: []string{"tpl-001"},
			Operations: RevisionOperations{
				&UpsertOperation{DeviceDescriptions: []DeviceDescription{
					testDescription("AA:AA:AA:AA:AA:01", "new camera", 2),
					testDescription("AA:AA:AA:AA:AA:02", "plug", 2),
				}},
				&DeleteOperation{MACAddresses: []string{"AA:AA:AA:AA:AA:02"}},
			},
		}
		revision.Apply(coll)

		if coll.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", coll.Len())
		}
		if coll.Devices[0].Description != "new camera" {
			t.Errorf("description = %q, want the upserted one", coll.Devices[0].Description)
		}
	})

	t.Run("replace discards previous devices", func(t *testing.T) {
		coll := NewCollection("repo-north")
		coll.Add(testDescription("AA:AA:AA:AA:AA:01", "camera", 1))
		coll.Add(testDescription("AA:AA:AA:AA:AA:02", "plug", 1))

		revision := &Revision{
			Operations: RevisionOperations{
				&ReplaceOperation{DeviceDescriptions: []DeviceDescription{
					testDescription("AA:AA:AA:AA:AA:03", "sensor", 2),
				}},
			},
		}
		revision.Apply(coll)

		if coll.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", coll.Len())
		}
		if !coll.Contains("AA:AA:AA:AA:AA:03") {
			t.Error("replace did not install the new device")
		}
	})

	t.Run("empty operations leave collection untouched", func(t *testing.T) {
		coll := NewCollection("repo-north")
		coll.Add(testDescription("AA:AA:AA:AA:AA:01", "camera", 1))

		revision := &Revision{ReferenceIDs: []string{"tpl-001"}}
		revision.Apply(coll)

		if coll.Len() != 1 {
			t.Errorf("Len() = %d, want 1", coll.Len())
		}
	})

	t.Run("delete of absent MAC is a no-op", func(t *testing.T) {
		coll := NewCollection("repo-north")
		coll.Add(testDescription("AA:AA:AA:AA:AA:01", "camera", 1))

		revision := &Revision{
			Operations: RevisionOperations{
				&DeleteOperation{MACAddresses: []string{"11:22:33:44:55:66"}},
			},
		}
		revision.Apply(coll)

		if coll.Len() != 1 {
			t.Errorf("Len() = %d, want 1", coll.Len())
		}
	})
}

func TestRevision_References(t *testing.T) {
	revision := &Revision{ReferenceIDs: []string{"tpl-001", "tpl-002"}}

	if !revision.References("tpl-002") {
		t.Error("References(tpl-002) = false")
	}
	if revision.References("tpl-999") {
		t.Error("References(tpl-999) = true")
	}
}

func TestRevision_FirstReplace(t *testing.T) {
	devices := []DeviceDescription{testDescription("AA:AA:AA:AA:AA:01", "camera", 1)}

	revision := &Revision{
		Operations: RevisionOperations{
			&UpsertOperation{},
			&ReplaceOperation{DeviceDescriptions: devices},
			&ReplaceOperation{},
		},
	}

	got := revision.FirstReplace()
	if len(got) != 1 || got[0].MAC() != "AA:AA:AA:AA:AA:01" {
		t.Errorf("FirstReplace() = %v, want the first replace's devices", got)
	}

	empty := &Revision{Operations: RevisionOperations{&UpsertOperation{}}}
	if empty.FirstReplace() != nil {
		t.Error("FirstReplace() != nil without replace operation")
	}
}

func TestRevision_Summary(t *testing.T) {
	revision := &Revision{
		Operations: RevisionOperations{
			&UpsertOperation{DeviceDescriptions: make([]DeviceDescription, 2)},
			&DeleteOperation{MACAddresses: []string{"AA:AA:AA:AA:AA:01"}},
		},
	}

	want := "upsert 2 device(s), delete 1 device(s)"
	if got := revision.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}

	if got := (&Revision{}).Summary(); got != "no operations" {
		t.Errorf("Summary() = %q, want %q", got, "no operations")
	}
}

func TestRevision_MarshalRoundTrip(t *testing.T) {
	revision := &Revision{
		ReferenceIDs: []string{"tpl-001"},
		Operations: RevisionOperations{
			&ReplaceOperation{DeviceDescriptions: []DeviceDescription{
				testDescription("AA:AA:AA:AA:AA:01", "camera", 1),
			}},
		},
	}

	data, err := json.Marshal(revision)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Revision
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !decoded.References("tpl-001") {
		t.Error("decoded revision lost its reference ids")
	}
	if len(decoded.FirstReplace()) != 1 {
		t.Error("decoded revision lost its replace operation")
	}
}
