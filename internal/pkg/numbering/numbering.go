// Package numbering mints public reservation and order numbers.
package numbering

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	DraftPrefix = "DRAFT"
	OrderPrefix = "ORD"

	suffixLength = 8
)

// Generator produces human-readable unique-ish numbers. Uniqueness is
// enforced by storage; callers retry on collision.
type Generator interface {
	Reservation(now time.Time) string
	Order(now time.Time) string
}

// UUIDGenerator derives number suffixes from random UUIDs.
type UUIDGenerator struct {
	random func() uuid.UUID
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{random: uuid.New}
}

func (g *UUIDGenerator) Reservation(now time.Time) string {
	return g.format(DraftPrefix, now)
}

func (g *UUIDGenerator) Order(now time.Time) string {
	return g.format(OrderPrefix, now)
}

func (g *UUIDGenerator) format(prefix string, now time.Time) string {
	id := g.random()
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:suffixLength]
	return fmt.Sprintf("%s-%d-%s", prefix, now.Year(), suffix)
}

// IsOrderNumber reports whether ref looks like an order number rather than a reservation.
func IsOrderNumber(ref string) bool {
	return strings.HasPrefix(ref, OrderPrefix+"-")
}

var Module = fx.Provide(fx.Annotate(NewUUIDGenerator, fx.As(new(Generator))))
