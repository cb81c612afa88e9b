// Package models declares the persisted entities of the order system.
package models

import "time"

// Role values stored in users.role.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleClient  = "client"
)

// User is an account holder. Role side rows (Manager, Administrator,
// Client) follow Role.
type User struct {
	ID           int64     `po:"id,primaryKey,serial"`
	Username     string    `po:"username,varchar(100),unique"`
	Email        string    `po:"email,varchar(255),unique"`
	PasswordHash string    `po:"password_hash,text"`
	Role         string    `po:"role,varchar(20),default('client')"`
	CreatedAt    time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt    time.Time `po:"updated_at,timestamptz,default(NOW())"`
}

func (User) TableName() string { return "users" }

// Manager marks a user as a manager. Orders reference the user id, not ID.
type Manager struct {
	ID        int64     `po:"id,primaryKey,serial"`
	UserID    int64     `po:"user_id,bigint,unique,fk(users.id),onDelete(cascade)"`
	CreatedAt time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt time.Time `po:"updated_at,timestamptz,default(NOW())"`
	User      *User     `po:"-,belongsTo,foreignKey(user_id),references(id)"`
}

func (Manager) TableName() string { return "managers" }

type Administrator struct {
	ID        int64     `po:"id,primaryKey,serial"`
	UserID    int64     `po:"user_id,bigint,unique,fk(users.id),onDelete(cascade)"`
	CreatedAt time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt time.Time `po:"updated_at,timestamptz,default(NOW())"`
}

func (Administrator) TableName() string { return "administrators" }

type Client struct {
	ID          int64     `po:"id,primaryKey,serial"`
	UserID      int64     `po:"user_id,bigint,unique,fk(users.id),onDelete(cascade)"`
	FullName    string    `po:"full_name,varchar(255)"`
	Address     string    `po:"address,varchar(255)"`
	PhoneNumber string    `po:"phone_number,varchar(50)"`
	CreatedAt   time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt   time.Time `po:"updated_at,timestamptz,default(NOW())"`
}

func (Client) TableName() string { return "clients" }

// Product is one row of the single products table; Type is the
// discriminator and decides which of the optional columns are meaningful.
type Product struct {
	ID          int64     `po:"id,primaryKey,serial"`
	Name        string    `po:"name,varchar(255)"`
	Description string    `po:"description,text"`
	Price       float64   `po:"price,numeric(10,2)"`
	Type        string    `po:"type,varchar(20)"`
	Image       *string   `po:"image,varchar(512)"`
	Color       *string   `po:"color,varchar(100)"`
	Quantity    *int      `po:"quantity,integer"`
	Width       *float64  `po:"width,double"`
	Length      *float64  `po:"length,double"`
	Height      *float64  `po:"height,double"`
	Connection  *string   `po:"connection,varchar(100)"`
	Relays      *int      `po:"relays,integer"`
	GateType    *string   `po:"gate_type,varchar(20)"`
	FillType    *string   `po:"fill_type,varchar(100)"`
	Fast        *bool     `po:"fast,boolean"`
	CreatedAt   time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt   time.Time `po:"updated_at,timestamptz,default(NOW())"`
}

func (Product) TableName() string { return "products" }

type Job struct {
	ID          int64     `po:"id,primaryKey,serial"`
	Name        string    `po:"name,varchar(255)"`
	Description string    `po:"description,text"`
	Price       float64   `po:"price,numeric(10,2)"`
	CreatedAt   time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt   time.Time `po:"updated_at,timestamptz,default(NOW())"`
}

func (Job) TableName() string { return "jobs" }

// Order status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Order belongs to the client in UserID. ManagerID, when set, is the
// assigned manager's user id.
type Order struct {
	ID         int64          `po:"id,primaryKey,serial"`
	UserID     int64          `po:"user_id,bigint,fk(users.id),onDelete(restrict)"`
	ManagerID  *int64         `po:"manager_id,bigint,fk(users.id),onDelete(set null)"`
	Status     string         `po:"status,varchar(20),default('pending')"`
	TotalPrice float64        `po:"total_price,numeric(10,2),default(0)"`
	CreatedAt  time.Time      `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt  time.Time      `po:"updated_at,timestamptz,default(NOW())"`
	Products   []OrderProduct `po:"-,hasMany,foreignKey(order_id),references(id)"`
	Jobs       []OrderJob     `po:"-,hasMany,foreignKey(order_id),references(id)"`
}

func (Order) TableName() string { return "orders" }

type OrderProduct struct {
	OrderID   int64 `po:"order_id,primaryKey,fk(orders.id),onDelete(cascade)"`
	ProductID int64 `po:"product_id,primaryKey,fk(products.id),onDelete(restrict)"`
	Quantity  int   `po:"quantity,integer,default(1)"`
	Done      bool  `po:"done,boolean,default(false)"`
}

func (OrderProduct) TableName() string { return "order_products" }

// OrderJob captures the job price at the time it was added to the order.
type OrderJob struct {
	OrderID int64   `po:"order_id,primaryKey,fk(orders.id),onDelete(cascade)"`
	JobID   int64   `po:"job_id,primaryKey,fk(jobs.id),onDelete(restrict)"`
	Price   float64 `po:"price,numeric(10,2)"`
	Done    bool    `po:"done,boolean,default(false)"`
}

func (OrderJob) TableName() string { return "order_jobs" }

type Document struct {
	ID        int64     `po:"id,primaryKey,serial"`
	OrderID   int64     `po:"order_id,bigint,fk(orders.id),onDelete(cascade)"`
	Name      string    `po:"name,varchar(255)"`
	FilePath  string    `po:"file_path,varchar(1024)"`
	CreatedAt time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt time.Time `po:"updated_at,timestamptz,default(NOW())"`
}

func (Document) TableName() string { return "documents" }

// Comment has exactly one parent: an order or a document.
type Comment struct {
	ID         int64     `po:"id,primaryKey,serial"`
	UserID     int64     `po:"user_id,bigint,fk(users.id),onDelete(restrict)"`
	OrderID    *int64    `po:"order_id,bigint,fk(orders.id),onDelete(cascade)"`
	DocumentID *int64    `po:"document_id,bigint,fk(documents.id),onDelete(cascade)"`
	Text       string    `po:"text,text"`
	CreatedAt  time.Time `po:"created_at,timestamptz,default(NOW())"`
	UpdatedAt  time.Time `po:"updated_at,timestamptz,default(NOW())"`
}

func (Comment) TableName() string { return "comments" }
