package repository

// Factory describes access to different domain repositories.
type Factory interface {
	Users() UserRepository
	Drafts() DraftRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Sessions() SessionRepository
	Catalog() Catalog
	Districts() DistrictRepository
	Unit() UnitOfWork
}
