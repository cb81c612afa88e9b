package builder

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

type TestOrder struct {
	ID         int64           `po:"id,primaryKey,autoIncrement"`
	UserID     int64           `po:"user_id,fk(test_customers.id)"`
	ManagerID  *int64          `po:"manager_id"`
	Status     string          `po:"status,default('pending')"`
	TotalPrice float64         `po:"total_price"`
	CreatedAt  time.Time       `po:"created_at,default(NOW()),readOnly"`
	Lines      []TestOrderLine `po:"-,hasMany,foreignKey(order_id)"`
}

type TestOrderLine struct {
	OrderID   int64 `po:"order_id,primaryKey"`
	ProductID int64 `po:"product_id,primaryKey"`
	Quantity  int   `po:"quantity,default(1)"`
}

func TestSelectQuery_ToSQL(t *testing.T) {
	tests := []struct {
		name       string
		setupQuery func() *SelectQuery[TestOrder]
		wantSQL    string
		wantArgLen int
	}{
		{
			name: "simple select all",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil)
			},
			wantSQL: "SELECT * FROM test_order",
		},
		{
			name: "select specific columns",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil).Columns("id", "status")
			},
			wantSQL: "SELECT id, status FROM test_order",
		},
		{
			name: "select with multiple WHERE",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil).
					Where(Eq("user_id", int64(7))).
					And(IsNotNull("manager_id"))
			},
			wantSQL:    "SELECT * FROM test_order WHERE user_id = $1 AND manager_id IS NOT NULL",
			wantArgLen: 1,
		},
		{
			name: "select with OR group",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil).
					Where(Eq("status", "pending")).
					And(Group(Eq("user_id", int64(1)), Or(Eq("manager_id", int64(1)))))
			},
			wantSQL:    "SELECT * FROM test_order WHERE status = $1 AND (user_id = $2 OR manager_id = $3)",
			wantArgLen: 3,
		},
		{
			name: "select with ANY",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil).Where(In("id", []int64{1, 2, 3}))
			},
			wantSQL:    "SELECT * FROM test_order WHERE id = ANY($1)",
			wantArgLen: 1,
		},
		{
			name: "select with ORDER BY, LIMIT, OFFSET",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil).
					OrderByDesc("created_at").
					OrderByDesc("id").
					Limit(10).
					Offset(20)
			},
			wantSQL: "SELECT * FROM test_order ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 20",
		},
		{
			name: "select with FOR UPDATE",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil).Where(Eq("id", int64(1))).ForUpdate()
			},
			wantSQL:    "SELECT * FROM test_order WHERE id = $1 FOR UPDATE",
			wantArgLen: 1,
		},
		{
			name: "negated condition",
			setupQuery: func() *SelectQuery[TestOrder] {
				return Select[TestOrder](nil).Where(Not(Eq("status", "cancelled")))
			},
			wantSQL:    "SELECT * FROM test_order WHERE NOT (status = $1)",
			wantArgLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.setupQuery().ToSQL()
			if err != nil {
				t.Fatalf("ToSQL() error = %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("ToSQL() sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgLen {
				t.Errorf("ToSQL() args len = %d, want %d", len(args), tt.wantArgLen)
			}
		})
	}
}

func TestSelectQuery_InvalidModel(t *testing.T) {
	if _, _, err := Select[int](nil).ToSQL(); err == nil {
		t.Error("expected error for non-struct type parameter")
	}
}

func TestInsertQuery_ToSQL(t *testing.T) {
	manager := int64(3)

	t.Run("skips auto-increment and zero defaults", func(t *testing.T) {
		sql, args, err := Insert[TestOrder](nil).
			Values(TestOrder{UserID: 1, TotalPrice: 12.5}).
			Returning("*").
			ToSQL()
		if err != nil {
			t.Fatalf("ToSQL() error = %v", err)
		}
		want := "INSERT INTO test_order (user_id, manager_id, total_price) VALUES ($1, $2, $3) RETURNING *"
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if len(args) != 3 {
			t.Errorf("args len = %d, want 3", len(args))
		}
	})

	t.Run("writes non-zero defaulted columns", func(t *testing.T) {
		sql, args, err := Insert[TestOrder](nil).
			Values(TestOrder{UserID: 1, ManagerID: &manager, Status: "processing"}).
			ToSQL()
		if err != nil {
			t.Fatalf("ToSQL() error = %v", err)
		}
		want := "INSERT INTO test_order (user_id, manager_id, status, total_price) VALUES ($1, $2, $3, $4)"
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if !reflect.DeepEqual(args[2], "processing") {
			t.Errorf("status arg = %v", args[2])
		}
	})

	t.Run("multi-row uses DEFAULT where a row leaves it to the database", func(t *testing.T) {
		sql, args, err := Insert[TestOrderLine](nil).
			Values(
				TestOrderLine{OrderID: 1, ProductID: 2, Quantity: 4},
				TestOrderLine{OrderID: 1, ProductID: 3},
			).
			ToSQL()
		if err != nil {
			t.Fatalf("ToSQL() error = %v", err)
		}
		want := "INSERT INTO test_order_line (order_id, product_id, quantity) VALUES ($1, $2, $3), ($4, $5, DEFAULT)"
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if len(args) != 5 {
			t.Errorf("args len = %d, want 5", len(args))
		}
	})

	t.Run("on conflict do nothing", func(t *testing.T) {
		sql, _, err := Insert[TestOrderLine](nil).
			Values(TestOrderLine{OrderID: 1, ProductID: 2, Quantity: 1}).
			OnConflictDoNothing("order_id", "product_id").
			ToSQL()
		if err != nil {
			t.Fatalf("ToSQL() error = %v", err)
		}
		want := "INSERT INTO test_order_line (order_id, product_id, quantity) VALUES ($1, $2, $3) ON CONFLICT (order_id, product_id) DO NOTHING"
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
	})

	t.Run("no values", func(t *testing.T) {
		if _, _, err := Insert[TestOrderLine](nil).ToSQL(); err == nil {
			t.Error("expected error without values")
		}
	})
}

func TestUpdateQuery_ToSQL(t *testing.T) {
	sql, args, err := Update[TestOrder](nil).
		Set("status", "completed").
		Set("total_price", 99.0).
		Set("status", "cancelled").
		Where(Eq("id", int64(5))).
		Returning("*").
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	want := "UPDATE test_order SET status = $1, total_price = $2 WHERE id = $3 RETURNING *"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if args[0] != "cancelled" {
		t.Errorf("expected last Set to win, got %v", args[0])
	}

	if _, _, err := Update[TestOrder](nil).Set("status", "x").ToSQL(); err == nil {
		t.Error("expected error for UPDATE without WHERE")
	}
	if _, _, err := Update[TestOrder](nil).Set("nope", 1).Where(Eq("id", 1)).ToSQL(); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestDeleteQuery_ToSQL(t *testing.T) {
	sql, args, err := Delete[TestOrderLine](nil).
		Where(Eq("order_id", int64(9))).
		And(Eq("product_id", int64(2))).
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	want := "DELETE FROM test_order_line WHERE order_id = $1 AND product_id = $2"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 2 {
		t.Errorf("args len = %d, want 2", len(args))
	}

	if _, _, err := Delete[TestOrderLine](nil).ToSQL(); err == nil {
		t.Error("expected error for DELETE without WHERE")
	}
}

func TestSelect_NonStructModel(t *testing.T) {
	_, _, err := Select[int](nil).ToSQL()
	if !errors.Is(err, runtime.ErrInvalidModel) {
		t.Errorf("ToSQL() error = %v, want ErrInvalidModel", err)
	}
}
