package sdk

import (
	"bufio"
	"io"
	"strings"
)

// Event is one server-sent event. Data joins multiple data lines with "\n".
type Event struct {
	Type string
	ID   string
	Data string
}

// EventScanner reads server-sent events from r. Comment lines and unknown
// fields are skipped; a blank line terminates an event.
type EventScanner struct {
	reader  *bufio.Reader
	current Event
	err     error
}

func NewEventScanner(r io.Reader) *EventScanner {
	return &EventScanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

func (s *EventScanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = Event{}

	var (
		dataLines []string
		eventType string
		eventID   string
		hasData   bool
	)

	emit := func() {
		s.current = Event{
			Type: eventType,
			ID:   eventID,
			Data: strings.Join(dataLines, "\n"),
		}
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				emit()
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				emit()
				return true
			}
			eventType, eventID = "", ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			field, value = line, ""
		} else {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			eventID = value
		}
	}
}

func (s *EventScanner) Event() Event {
	return s.current
}

// Err returns nil when the stream ended with a clean EOF.
func (s *EventScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
