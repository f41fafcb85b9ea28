// Package cart maintains the sale-in-progress: an ordered collection of
// line items keyed by product id.
package cart

// Line is one product entry in the active ticket. Quantity never drops
// below 1; removing a product is an explicit operation, not a side effect
// of decrementing.
type Line struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Barcode   string  `json:"barcode"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Subtotal returns the extended price for the line.
func (l Line) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Cart holds the ticket lines in insertion order. One cart exists per
// register session and is never persisted; callers serialize access.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddOrIncrement merges a product into the ticket. A product already on the
// ticket gets its quantity bumped; a new product is appended with quantity 1.
// The resulting line is returned.
func (c *Cart) AddOrIncrement(productID int64, name, barcode string, unitPrice float64) Line {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity++
			return c.lines[i]
		}
	}
	line := Line{
		ProductID: productID,
		Name:      name,
		Barcode:   barcode,
		UnitPrice: unitPrice,
		Quantity:  1,
	}
	c.lines = append(c.lines, line)
	return line
}

// AdjustQuantity applies delta to a line's quantity, flooring at 1. The
// updated line and true are returned when the product is on the ticket.
func (c *Cart) AdjustQuantity(productID int64, delta int) (Line, bool) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			qty := c.lines[i].Quantity + delta
			if qty < 1 {
				qty = 1
			}
			c.lines[i].Quantity = qty
			return c.lines[i], true
		}
	}
	return Line{}, false
}

// Remove deletes a line entirely. Returns false when the product is not on
// the ticket.
func (c *Cart) Remove(productID int64) bool {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the ticket. Used by "Clear All" and by the post-checkout
// reset.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the ticket in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of distinct products on the ticket.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the ticket has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Total recomputes the ticket total on every call; there is no cached value
// to go stale.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}
