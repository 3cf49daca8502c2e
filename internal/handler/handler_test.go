package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-storefront-api/internal/middleware"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/repository"
	"go-storefront-api/internal/service"
	"go-storefront-api/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type testEnv struct {
	app   *fiber.App
	store *repository.MemoryStore
	users *repository.MemoryUsers
}

// newTestEnv wires the full route table over the in-memory store, mirroring
// the wiring in cmd/api.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	cartRepo := repository.NewMemoryCarts(store)
	userRepo := repository.NewMemoryUsers(store)

	catalogService := service.NewCatalogService(store)
	cartService := service.NewCartService(cartRepo, store, store)
	authService := service.NewAuthService(userRepo)
	userService := service.NewUserService(userRepo)

	productHandler := NewProductHandler(catalogService)
	cartHandler := NewCartHandler(cartService)
	authHandler := NewAuthHandler(authService)
	adminHandler := NewAdminHandler(userService)

	app := fiber.New()
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	api.Get("/products", productHandler.GetProducts)
	api.Get("/products/:id", productHandler.GetProduct)

	requireAuth := middleware.RequireAuth(userRepo)
	requireAdmin := middleware.RequireAdmin()

	api.Post("/products", requireAuth, requireAdmin, productHandler.CreateProduct)
	api.Put("/products/:id", requireAuth, requireAdmin, productHandler.UpdateProduct)
	api.Delete("/products/:id", requireAuth, requireAdmin, productHandler.DeleteProduct)

	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.Post("/create-admin", adminHandler.CreateAdmin)
	admin.Get("/users", adminHandler.GetUsers)

	carts := api.Group("/carts", requireAuth)
	carts.Post("/", cartHandler.CreateCart)
	carts.Get("/history", cartHandler.GetHistory)
	carts.Get("/:id", cartHandler.GetCart)
	carts.Post("/:id/product/:pid", cartHandler.AddProduct)
	carts.Put("/:id/product/:pid", cartHandler.UpdateQuantity)
	carts.Delete("/:id/product/:pid", cartHandler.RemoveProduct)
	carts.Delete("/:id", cartHandler.DeleteCart)
	carts.Post("/:id/pay", cartHandler.PayCart)

	return &testEnv{app: app, store: store, users: userRepo}
}

// seedUser creates an account directly in the store and returns a bearer token.
func (e *testEnv) seedUser(t *testing.T, email string, role model.Role) (*model.User, string) {
	t.Helper()
	user := &model.User{Email: email, FirstName: "Test", LastName: "User", Role: role}
	if err := user.SetPassword("secret1"); err != nil {
		t.Fatal(err)
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, user.FullName(), string(user.Role))
	if err != nil {
		t.Fatal(err)
	}
	return user, token
}

func (e *testEnv) seedProduct(t *testing.T, code string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{Title: "Product " + code, Code: code, Price: 9.99, Status: true, Stock: stock}
	if err := e.store.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp, raw
}

func wantStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "POST", "/api/auth/register", "", fiber.Map{
		"email": "jane@example.com", "password": "secret1",
		"first_name": "Jane", "last_name": "Doe",
	})
	wantStatus(t, resp, body, 201)

	var registered struct {
		User model.UserResponse `json:"user"`
	}
	if err := json.Unmarshal(body, &registered); err != nil {
		t.Fatal(err)
	}
	if registered.User.Role != model.RoleUser {
		t.Fatalf("registered role %q", registered.User.Role)
	}

	// duplicate email
	resp, body = env.do(t, "POST", "/api/auth/register", "", fiber.Map{
		"email": "jane@example.com", "password": "secret1",
		"first_name": "Jane", "last_name": "Doe",
	})
	wantStatus(t, resp, body, 409)

	resp, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{
		"email": "jane@example.com", "password": "secret1",
	})
	wantStatus(t, resp, body, 200)
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatal(err)
	}
	if login.Token == "" {
		t.Fatalf("empty token")
	}

	resp, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{
		"email": "jane@example.com", "password": "wrong",
	})
	wantStatus(t, resp, body, 401)
}

func TestProductEndpoints_AdminGate(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.seedUser(t, "user@example.com", model.RoleUser)
	_, adminToken := env.seedUser(t, "admin@example.com", model.RoleAdmin)

	newProduct := fiber.Map{"title": "Keyboard", "code": "KB-01", "price": 99.5, "stock": 3}

	resp, body := env.do(t, "POST", "/api/products", "", newProduct)
	wantStatus(t, resp, body, 401)

	resp, body = env.do(t, "POST", "/api/products", userToken, newProduct)
	wantStatus(t, resp, body, 403)

	resp, body = env.do(t, "POST", "/api/products", adminToken, newProduct)
	wantStatus(t, resp, body, 201)

	var created struct {
		Data model.Product `json:"data"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}

	// catalog reads are public
	resp, body = env.do(t, "GET", "/api/products", "", nil)
	wantStatus(t, resp, body, 200)
	resp, body = env.do(t, "GET", "/api/products/"+created.Data.ID.String(), "", nil)
	wantStatus(t, resp, body, 200)

	resp, body = env.do(t, "GET", "/api/products/"+uuid.NewString(), "", nil)
	wantStatus(t, resp, body, 404)

	// duplicate code
	resp, body = env.do(t, "POST", "/api/products", adminToken, newProduct)
	wantStatus(t, resp, body, 409)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "shopper@example.com", model.RoleUser)
	p := env.seedProduct(t, "KB-01", 2)

	resp, body := env.do(t, "POST", "/api/carts/", "", nil)
	wantStatus(t, resp, body, 401)

	// first call creates, second returns the same cart
	resp, body = env.do(t, "POST", "/api/carts/", token, nil)
	wantStatus(t, resp, body, 201)
	var cart model.Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatal(err)
	}

	resp, body = env.do(t, "POST", "/api/carts/", token, nil)
	wantStatus(t, resp, body, 200)
	var again model.Cart
	if err := json.Unmarshal(body, &again); err != nil {
		t.Fatal(err)
	}
	if again.ID != cart.ID {
		t.Fatalf("second create returned a different cart")
	}

	itemPath := fmt.Sprintf("/api/carts/%s/product/%s", cart.ID, p.ID)

	resp, body = env.do(t, "POST", itemPath, token, nil)
	wantStatus(t, resp, body, 200)
	resp, body = env.do(t, "POST", itemPath, token, nil)
	wantStatus(t, resp, body, 200)

	// stock is 2, a third unit exceeds it
	resp, body = env.do(t, "POST", itemPath, token, nil)
	wantStatus(t, resp, body, 400)

	resp, body = env.do(t, "PUT", itemPath, token, fiber.Map{"quantity": 1})
	wantStatus(t, resp, body, 200)
	resp, body = env.do(t, "PUT", itemPath, token, fiber.Map{"quantity": 0})
	wantStatus(t, resp, body, 400)

	resp, body = env.do(t, "GET", "/api/carts/"+cart.ID.String(), token, nil)
	wantStatus(t, resp, body, 200)
	var items []model.CartItem
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Quantity != 1 {
		t.Fatalf("items %+v", items)
	}

	resp, body = env.do(t, "POST", "/api/carts/"+cart.ID.String()+"/pay", token, nil)
	wantStatus(t, resp, body, 200)

	// paid carts reject further mutation
	resp, body = env.do(t, "POST", itemPath, token, nil)
	wantStatus(t, resp, body, 400)

	resp, body = env.do(t, "GET", "/api/carts/history", token, nil)
	wantStatus(t, resp, body, 200)
	var history []model.Cart
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Status != model.CartPaid {
		t.Fatalf("history %+v", history)
	}
}

func TestCartAccessControl(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.seedUser(t, "owner@example.com", model.RoleUser)
	_, strangerToken := env.seedUser(t, "stranger@example.com", model.RoleUser)
	_, adminToken := env.seedUser(t, "admin@example.com", model.RoleAdmin)
	p := env.seedProduct(t, "KB-01", 5)

	resp, body := env.do(t, "POST", "/api/carts/", ownerToken, nil)
	wantStatus(t, resp, body, 201)
	var cart model.Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatal(err)
	}

	itemPath := fmt.Sprintf("/api/carts/%s/product/%s", cart.ID, p.ID)
	resp, body = env.do(t, "POST", itemPath, ownerToken, nil)
	wantStatus(t, resp, body, 200)

	// strangers get nothing
	resp, body = env.do(t, "GET", "/api/carts/"+cart.ID.String(), strangerToken, nil)
	wantStatus(t, resp, body, 403)
	resp, body = env.do(t, "POST", itemPath, strangerToken, nil)
	wantStatus(t, resp, body, 403)

	// admins may read but not mutate
	resp, body = env.do(t, "GET", "/api/carts/"+cart.ID.String(), adminToken, nil)
	wantStatus(t, resp, body, 200)
	resp, body = env.do(t, "POST", itemPath, adminToken, nil)
	wantStatus(t, resp, body, 403)
	resp, body = env.do(t, "DELETE", itemPath, adminToken, nil)
	wantStatus(t, resp, body, 403)

	// admins may settle
	resp, body = env.do(t, "POST", "/api/carts/"+cart.ID.String()+"/pay", adminToken, nil)
	wantStatus(t, resp, body, 200)
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.seedUser(t, "user@example.com", model.RoleUser)
	_, adminToken := env.seedUser(t, "admin@example.com", model.RoleAdmin)

	newAdmin := fiber.Map{
		"email": "second@example.com", "password": "secret1",
		"first_name": "Second", "last_name": "Admin", "role": "admin",
	}

	resp, body := env.do(t, "POST", "/api/admin/create-admin", userToken, newAdmin)
	wantStatus(t, resp, body, 403)

	resp, body = env.do(t, "POST", "/api/admin/create-admin", adminToken, newAdmin)
	wantStatus(t, resp, body, 201)
	var created struct {
		User model.UserResponse `json:"user"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.User.Role != model.RoleAdmin {
		t.Fatalf("role %q", created.User.Role)
	}

	resp, body = env.do(t, "GET", "/api/admin/users", adminToken, nil)
	wantStatus(t, resp, body, 200)
	var all []model.UserResponse
	if err := json.Unmarshal(body, &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all))
	}
}

func TestInvalidIDsAndMissingResources(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "user@example.com", model.RoleUser)

	resp, body := env.do(t, "GET", "/api/carts/not-a-uuid", token, nil)
	wantStatus(t, resp, body, 400)

	resp, body = env.do(t, "GET", "/api/carts/"+uuid.NewString(), token, nil)
	wantStatus(t, resp, body, 404)

	resp, body = env.do(t, "POST", "/api/carts/"+uuid.NewString()+"/pay", token, nil)
	wantStatus(t, resp, body, 404)
}
