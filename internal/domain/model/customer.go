package model

// ContactInfo is what the gateway and the shop need to reach the buyer.
type ContactInfo struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	DocumentType   string
	DocumentNumber string
}

// Customer is either an authenticated user or a guest.
type Customer interface {
	Contact() ContactInfo
	UserID() (int64, bool)
	isCustomer()
}

// AuthenticatedCustomer is a registered user placing the order.
type AuthenticatedCustomer struct {
	ID   int64
	Info ContactInfo
}

func (c AuthenticatedCustomer) Contact() ContactInfo  { return c.Info }
func (c AuthenticatedCustomer) UserID() (int64, bool) { return c.ID, true }
func (AuthenticatedCustomer) isCustomer()             {}

// GuestCustomer checks out with contact details only.
type GuestCustomer struct {
	Info ContactInfo
}

func (c GuestCustomer) Contact() ContactInfo { return c.Info }
func (GuestCustomer) UserID() (int64, bool)  { return 0, false }
func (GuestCustomer) isCustomer()            {}
