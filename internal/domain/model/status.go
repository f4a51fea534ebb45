package model

// ReferenceKind tells whether a public number named a draft or an order.
type ReferenceKind string

const (
	ReferenceDraft ReferenceKind = "draft"
	ReferenceOrder ReferenceKind = "order"
)

// StatusView is the read-only projection served to pollers.
type StatusView struct {
	Kind       ReferenceKind
	Reference  string
	Draft      *Draft
	DraftState DraftState
	Order      *Order
	Payments   []Payment
}
