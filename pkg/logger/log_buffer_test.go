package logger

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
)

func checkIDRange(entries []*Entry, expectedStartID int, expectedEndID int) error {
	if len(entries) != expectedEndID-expectedStartID+1 {
		return fmt.Errorf("unexpected length of entries: %v", len(entries))
	}
	for index, entry := range entries {
		if expected := index + expectedStartID; entry.ID != expected {
			return fmt.Errorf("unexpected entryID: %v != %v", entry.ID, expected)
		}
	}
	return nil
}

func TestLogBuffer(t *testing.T) {
	capacity := 100
	entryCount := 0
	buffer := NewLogBuffer(capacity)
	writeEntries := func(count int) {
		for i := 0; i < count; i++ {
			buffer.write(&Entry{ID: entryCount})
			entryCount++
		}
	}

	assert.Equal(t, len(buffer.Entries(0, -1, -1)), 0)

	writeEntries(1)
	assert.NilError(t, checkIDRange(buffer.Entries(0, -1, -1), 0, 0))
	assert.Equal(t, len(buffer.Entries(1, -1, -1)), 0)

	// Fill up to capacity, then wrap around.
	writeEntries(capacity - 1)
	assert.NilError(t, checkIDRange(buffer.Entries(0, -1, -1), 0, 99))
	assert.NilError(t, checkIDRange(buffer.Entries(-1, -1, 10), 90, 99))

	writeEntries(1)
	assert.NilError(t, checkIDRange(buffer.Entries(0, -1, -1), 1, 100))
	assert.NilError(t, checkIDRange(buffer.Entries(50, -1, -1), 50, 100))
	assert.NilError(t, checkIDRange(buffer.Entries(-1, 50, 10), 40, 49))
	assert.Equal(t, len(buffer.Entries(10, 10, -1)), 0)
}

func TestEntryFieldInclusion(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := logrus.StandardLogger()

	originalEntry := logger.WithFields(map[string]interface{}{"keyA": "valA", "keyB": "valB"})
	originalEntry.Message = "important message"

	assert.NilError(t, buffer.Fire(originalEntry))

	savedEntry := buffer.Entries(-1, -1, -1)[0]
	assert.Equal(t, savedEntry.Message, originalEntry.Message+`  keyA="valA" keyB="valB"`)
}
