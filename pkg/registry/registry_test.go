package registry

import (
	"reflect"
	"testing"
)

type User struct {
	ID    int64  `po:"id,primaryKey,autoIncrement"`
	Name  string `po:"name"`
	Email string `po:"email"`
}

type Product struct {
	ID    int64  `po:"id,primaryKey,autoIncrement"`
	Title string `po:"title"`
}

type OtherUser struct {
	ID int64 `po:"id,primaryKey"`
}

func (OtherUser) TableName() string { return "user" }

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	t.Run("register new model", func(t *testing.T) {
		if err := registry.Register(User{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if !registry.Has(reflect.TypeOf(User{})) {
			t.Error("expected model to be registered")
		}
	})

	t.Run("register duplicate model", func(t *testing.T) {
		if err := registry.Register(&User{}); err != nil {
			t.Errorf("Duplicate register failed: %v", err)
		}
	})

	t.Run("register reflect.Type", func(t *testing.T) {
		if err := registry.Register(reflect.TypeOf(Product{})); err != nil {
			t.Fatalf("Register with reflect.Type failed: %v", err)
		}
		if _, err := registry.GetByName("product"); err != nil {
			t.Errorf("expected product table: %v", err)
		}
	})

	t.Run("table name collision", func(t *testing.T) {
		if err := registry.Register(OtherUser{}); err == nil {
			t.Error("expected error when two types claim table 'user'")
		}
	})

	t.Run("non-struct model", func(t *testing.T) {
		if err := registry.Register("not a struct"); err == nil {
			t.Error("expected error for non-struct model")
		}
	})
}

func TestRegistry_GetOrRegister(t *testing.T) {
	registry := NewRegistry()

	table, err := registry.GetOrRegister(Product{})
	if err != nil {
		t.Fatalf("GetOrRegister failed: %v", err)
	}
	again, err := registry.Get(reflect.TypeOf(&Product{}))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if table != again {
		t.Error("expected the same metadata pointer on repeated lookups")
	}

	if names := registry.TableNames(); len(names) != 1 || names[0] != "product" {
		t.Errorf("unexpected table names %v", names)
	}

	registry.Clear()
	if registry.Has(reflect.TypeOf(Product{})) {
		t.Error("expected registry to be empty after Clear")
	}
}
