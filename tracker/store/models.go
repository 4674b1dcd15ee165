package store

import (
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
)

type agentRow struct {
	bun.BaseModel `bun:"table:agents,alias:a"`

	UID  int64  `bun:"uid,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

func (r *agentRow) toAgent() contractx.Agent {
	return contractx.Agent{UID: r.UID, Name: r.Name}
}

// orderRow keeps agent_uid as a plain column: the database is not trusted to
// enforce the reference, the store checks it on insert.
type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	UID       int64      `bun:"uid,pk,autoincrement"`
	Name      string     `bun:"name,notnull"`
	Price     *int64     `bun:"price"`
	AgentUID  int64      `bun:"agent_uid,notnull"`
	StartDate time.Time  `bun:"start_date,type:date,notnull"`
	EndDate   *time.Time `bun:"end_date,type:date"`

	Agent *agentRow `bun:"rel:belongs-to,join:agent_uid=uid"`
}

// resolved reports whether the joined agent row exists.
func (r *orderRow) resolved() bool {
	return r.Agent != nil && r.Agent.UID != 0
}

func (r *orderRow) toOrder() contractx.Order {
	o := contractx.Order{
		UID:       r.UID,
		Name:      r.Name,
		Price:     r.Price,
		AgentUID:  r.AgentUID,
		StartDate: contractx.DateOf(r.StartDate),
	}
	if r.Agent != nil {
		o.Agent = r.Agent.toAgent()
	}
	if r.EndDate != nil {
		d := contractx.DateOf(*r.EndDate)
		o.EndDate = &d
	}
	return o
}
