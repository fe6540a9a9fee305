package errors

import "testing"

func TestErrors_ErrorMethod(t *testing.T) {
	errs := []error{
		&DuplicateKeyError{Key: "k1"},
		&NotFoundError{Key: "k1"},
		&InvalidArgumentError{Reason: "nil handle"},
		&OutOfMemoryError{Reason: "arena exhausted"},
		&CorruptInputError{Reason: "bad magic"},
	}

	for _, e := range errs {
		if e.Error() == "" {
			t.Errorf("Error() returned empty string for %T", e)
		}
	}
}
