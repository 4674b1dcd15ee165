package contract

import "time"

type Agent struct {
	UID  int64  `json:"uid"`
	Name string `json:"name"`
}

// Order is always returned with its Agent resolved. Orders whose agent was
// deleted are never handed out by a store.
type Order struct {
	UID       int64      `json:"uid"`
	Name      string     `json:"name"`
	Price     *int64     `json:"price,omitempty"`
	AgentUID  int64      `json:"agent_uid"`
	Agent     Agent      `json:"agent"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

func (o Order) InProgress() bool {
	return o.EndDate == nil
}

func (o Order) HasPrice() bool {
	return o.Price != nil
}

// Clone returns a deep copy so nullable fields are not shared.
func (o Order) Clone() Order {
	out := o
	if o.Price != nil {
		p := *o.Price
		out.Price = &p
	}
	if o.EndDate != nil {
		d := *o.EndDate
		out.EndDate = &d
	}
	return out
}

// SumPrices adds up the prices of the given orders, skipping deferred ones.
func SumPrices(orders []Order) int64 {
	var total int64
	for _, o := range orders {
		if o.Price != nil {
			total += *o.Price
		}
	}
	return total
}

// Today truncates t to a UTC calendar date.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf keeps the calendar date of t as written, dropping clock and zone.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Int64Ptr(v int64) *int64 {
	return &v
}
