// Package client provides HTTP and WebSocket clients for the classification service.
// Types mirror the service's wire format, which keeps Spanish field names.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgActive MessageType = "active"
	MsgError  MessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Confidence is a classifier confidence as a fraction in [0,1]. The service
// sometimes reports a percentage; UnmarshalJSON folds (1,100] down to a
// fraction and rejects anything else. A wire value of exactly 1 is ambiguous
// and is read as the fraction 1.0, so a percentage service reporting 1% shows
// as 100%.
type Confidence float64

var errConfidenceRange = errors.New("confidence out of range")

// NormalizeConfidence maps a wire value to a fraction.
func NormalizeConfidence(v float64) (Confidence, error) {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0, fmt.Errorf("%w: %v", errConfidenceRange, v)
	case v <= 1:
		return Confidence(v), nil
	case v <= 100:
		return Confidence(v / 100), nil
	default:
		return 0, fmt.Errorf("%w: %v", errConfidenceRange, v)
	}
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n, err := NormalizeConfidence(v)
	if err != nil {
		return err
	}
	*c = n
	return nil
}

// Operacion is a classification session. Once Completada is true the
// session does not change.
type Operacion struct {
	ID              int             `json:"id"`
	FechaInicio     time.Time       `json:"fecha_inicio"`
	FechaFin        *time.Time      `json:"fecha_fin"`
	Completada      bool            `json:"completada"`
	Descripcion     string          `json:"descripcion"`
	Clasificaciones []Clasificacion `json:"clasificaciones"`
}

// Valid reports whether op is a session the service actually reported.
// Sessions always carry a positive id.
func (op *Operacion) Valid() bool {
	return op != nil && op.ID > 0
}

// Clasificacion is one classification event recorded in a session.
type Clasificacion struct {
	ID           int        `json:"id"`
	TipoMaterial string     `json:"tipo_material"`
	Confianza    Confidence `json:"confianza"`
	CreatedAt    time.Time  `json:"created_at"`
}

// OperacionCompletada summarizes a finished session.
type OperacionCompletada struct {
	ID                   int            `json:"id"`
	FechaInicio          time.Time      `json:"fecha_inicio"`
	FechaFin             *time.Time     `json:"fecha_fin"`
	Descripcion          string         `json:"descripcion"`
	TotalClasificaciones int            `json:"total_clasificaciones"`
	PorTipo              map[string]int `json:"por_tipo"`
}

// Estadisticas is returned by the stop command.
type Estadisticas struct {
	TotalClasificaciones int            `json:"total_clasificaciones"`
	PorTipo              map[string]int `json:"por_tipo"`
}

// ClassificationResult is the outcome of classifying one image.
type ClassificationResult struct {
	TipoMaterial       string     `json:"tipo_material"`
	Confianza          Confidence `json:"confianza"`
	DetectedCategories []string   `json:"detected_categories,omitempty"`
}

type startResponse struct {
	Mensaje string `json:"mensaje"`
}

// decodeResult validates a classify response body.
func decodeResult(data []byte) (ClassificationResult, error) {
	var raw struct {
		TipoMaterial       string   `json:"tipo_material"`
		Confianza          *float64 `json:"confianza"`
		DetectedCategories []string `json:"detected_categories"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ClassificationResult{}, err
	}
	if raw.TipoMaterial == "" {
		return ClassificationResult{}, errors.New("missing tipo_material")
	}
	if raw.Confianza == nil {
		return ClassificationResult{}, errors.New("missing confianza")
	}
	conf, err := NormalizeConfidence(*raw.Confianza)
	if err != nil {
		return ClassificationResult{}, err
	}
	return ClassificationResult{
		TipoMaterial:       raw.TipoMaterial,
		Confianza:          conf,
		DetectedCategories: raw.DetectedCategories,
	}, nil
}
