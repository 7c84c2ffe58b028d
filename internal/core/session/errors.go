package session

import (
	"errors"
	"fmt"
)

// ErrInvalidPayload meldet eine nicht verwertbare Client-Nachricht.
// Die Verbindung bleibt offen, der Client erhält eine Fehlermeldung.
var ErrInvalidPayload = errors.New("invalid frame payload")

// Stage benennt den Verarbeitungsschritt eines Frames
type Stage string

const (
	StageFace Stage = "face"
	StagePose Stage = "pose"
)

// FrameError ist ein behebbarer Fehler in einem Verarbeitungsschritt.
// Das Ergebnis des Frames bleibt gültig, der Schritt liefert seinen Ruhewert.
type FrameError struct {
	Stage Stage
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// FatalError ist ein unbehandelter Fehler, nach dem die Verbindung geschlossen wird
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal processing error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal meldet, ob err einen FatalError enthält
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
