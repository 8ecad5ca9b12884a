package domain

// Address value object адреса доставки.
// Не имеет собственной идентичности, сравнивается по значению, хранится вместе с заказом.
type Address struct {
	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

// NewAddress создаёт адрес
func NewAddress(street, city, state, country, zipCode string) Address {
	return Address{
		Street:  street,
		City:    city,
		State:   state,
		Country: country,
		ZipCode: zipCode,
	}
}
