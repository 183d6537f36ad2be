// Command storefront drives the storefront client stores from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"storefront/internal/apperror"
	"storefront/internal/client"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/guard"
	"storefront/internal/logger"
	"storefront/internal/store"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// app holds the stores one invocation works with.
type app struct {
	out     io.Writer
	log     *zap.Logger
	session *store.SessionStore
	cart    *store.CartStore
	catalog *store.CatalogStore
	orders  *store.OrderStore

	email    string
	password string
}

type command struct {
	usage string
	role  domain.Role
	run   func(ctx context.Context, a *app, args []string) error
}

// commands is populated in init because the handlers reference it for their
// usage strings, which would otherwise form an initialization cycle.
var commands map[string]command

func init() {
	commands = map[string]command{
		"products":       {"products", domain.RoleNone, listProducts},
		"register":       {"register <name> <email> <password>", domain.RoleNone, registerAccount},
		"login":          {"login", domain.RoleNone, showSession},
		"verify":         {"verify <token>", domain.RoleNone, verifyEmail},
		"resend":         {"resend <email>", domain.RoleNone, resendVerification},
		"forgot":         {"forgot <email>", domain.RoleNone, forgotPassword},
		"reset":          {"reset <token> <password>", domain.RoleNone, resetPassword},
		"checkout":       {"checkout -name N -email E -phone P -address A <productId[:qty]>...", domain.RoleNone, checkout},
		"orders":         {"orders", domain.RoleNone, listOrders},
		"order-status":   {"order-status <orderId> <pending|shipped|delivered>", domain.RoleAdmin, updateOrderStatus},
		"add-product":    {"add-product -name N -price P [-description D] -image FILE", domain.RoleAdmin, addProduct},
		"update-product": {"update-product <id> -name N -price P [-description D] [-image FILE]", domain.RoleAdmin, updateProduct},
		"delete-product": {"delete-product <id>", domain.RoleAdmin, deleteProduct},
	}
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, config.Load()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperror.MessageOf(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, cfg *config.Config) error {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	fs.SetOutput(out)
	baseURL := fs.String("api", cfg.API.BaseURL, "backend base URL")
	email := fs.String("email", os.Getenv("STOREFRONT_EMAIL"), "account email used to sign in")
	password := fs.String("password", os.Getenv("STOREFRONT_PASSWORD"), "account password used to sign in")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(fs)
		return errors.New("missing command")
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage(fs)
		return fmt.Errorf("unknown command %q", name)
	}

	log := logger.NewCLI(*verbose)
	defer log.Sync()

	a := newApp(*baseURL, cfg, log, out)
	a.email, a.password = *email, *password
	defer a.dispose()

	if a.email != "" {
		if _, err := a.session.Login(ctx, domain.Credentials{Email: a.email, Password: a.password}); err != nil {
			return err
		}
	}

	if decision := guard.Check(a.session.Session(), cmd.role); decision != guard.Allow {
		return fmt.Errorf("%s: %s (sign in with -email/-password as %s)", name, decision, cmd.role)
	}

	return cmd.run(ctx, a, fs.Args()[1:])
}

func newApp(baseURL string, cfg *config.Config, log *zap.Logger, out io.Writer) *app {
	c := client.New(baseURL,
		client.WithTimeout(cfg.API.Timeout),
		client.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		client.WithLogger(logger.Component(log, "client")),
	)
	session := store.NewSessionStore(c, logger.Component(log, "session"))
	return &app{
		out:     out,
		log:     log,
		session: session,
		cart:    store.NewCartStore(),
		catalog: store.NewCatalogStore(c, session, logger.Component(log, "catalog")),
		orders:  store.NewOrderStore(c, session, logger.Component(log, "orders")),
	}
}

func (a *app) dispose() {
	a.session.Dispose()
	a.catalog.Dispose()
	a.orders.Dispose()
}

func usage(fs *flag.FlagSet) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(fs.Output(), "usage: storefront [flags] <command> [args]")
	fmt.Fprintln(fs.Output(), "\ncommands:")
	for _, name := range names {
		fmt.Fprintf(fs.Output(), "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(fs.Output(), "\nflags:")
	fs.PrintDefaults()
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) say(msg string) error {
	_, err := fmt.Fprintln(a.out, msg)
	return err
}

func need(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: storefront %s", usage)
	}
	return nil
}

func listProducts(ctx context.Context, a *app, _ []string) error {
	products, err := a.catalog.FetchProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Fprintf(a.out, "%s\t%s\t%s\n", p.ID, p.Price.StringFixed(2), p.Name)
	}
	return nil
}

func registerAccount(ctx context.Context, a *app, args []string) error {
	if err := need(args, 3, commands["register"].usage); err != nil {
		return err
	}
	pending, err := a.session.Register(ctx, domain.Profile{Name: args[0], Email: args[1], Password: args[2]})
	if err != nil {
		return err
	}
	return a.say(pending.Message)
}

func showSession(_ context.Context, a *app, _ []string) error {
	session := a.session.Session()
	if !session.Authenticated() {
		return errors.New("login: pass -email and -password")
	}
	return a.print(map[string]interface{}{
		"role":      session.Role,
		"expiresAt": session.ExpiresAt,
		"token":     session.Token,
	})
}

func verifyEmail(ctx context.Context, a *app, args []string) error {
	if err := need(args, 1, commands["verify"].usage); err != nil {
		return err
	}
	msg, err := a.session.VerifyEmail(ctx, args[0])
	if err != nil {
		return err
	}
	return a.say(msg)
}

func resendVerification(ctx context.Context, a *app, args []string) error {
	if err := need(args, 1, commands["resend"].usage); err != nil {
		return err
	}
	msg, err := a.session.ResendVerification(ctx, args[0])
	if err != nil {
		return err
	}
	return a.say(msg)
}

func forgotPassword(ctx context.Context, a *app, args []string) error {
	if err := need(args, 1, commands["forgot"].usage); err != nil {
		return err
	}
	msg, err := a.session.ForgotPassword(ctx, args[0])
	if err != nil {
		return err
	}
	return a.say(msg)
}

func resetPassword(ctx context.Context, a *app, args []string) error {
	if err := need(args, 2, commands["reset"].usage); err != nil {
		return err
	}
	msg, err := a.session.ResetPassword(ctx, domain.PasswordReset{Token: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	return a.say(msg)
}

// checkout fills the cart from the live catalog and submits it.
func checkout(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var customer domain.Customer
	fs.StringVar(&customer.Name, "name", "", "customer name")
	fs.StringVar(&customer.Email, "email", "", "contact email")
	fs.StringVar(&customer.Phone, "phone", "", "contact phone")
	fs.StringVar(&customer.Address, "address", "", "delivery address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: storefront %s", commands["checkout"].usage)
	}

	products, err := a.catalog.FetchProducts(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, arg := range fs.Args() {
		id, qty, err := parseLine(arg)
		if err != nil {
			return err
		}
		product, ok := byID[id]
		if !ok {
			return fmt.Errorf("unknown product %q", id)
		}
		a.cart.AddItem(product, qty)
	}

	snapshot := a.cart.Snapshot()
	order, err := a.orders.CreateOrder(ctx, domain.NewOrderDraft(customer, snapshot))
	if err != nil {
		return err
	}
	a.cart.ResetCart()
	a.orders.ResetOrderSuccess()

	a.log.Info("Checkout complete",
		zap.String("order_id", order.ID),
		zap.String("cart_total", snapshot.Total.StringFixed(2)),
		zap.String("order_total", order.TotalAmount.StringFixed(2)),
	)
	return a.print(order)
}

func parseLine(arg string) (string, int, error) {
	id, rawQty, found := strings.Cut(arg, ":")
	if !found {
		return id, 1, nil
	}
	qty, err := strconv.Atoi(rawQty)
	if err != nil || qty < 1 {
		return "", 0, fmt.Errorf("invalid quantity in %q", arg)
	}
	return id, qty, nil
}

func listOrders(ctx context.Context, a *app, _ []string) error {
	orders, err := a.orders.FetchOrders(ctx)
	if err != nil {
		return err
	}
	return a.print(orders)
}

func updateOrderStatus(ctx context.Context, a *app, args []string) error {
	if err := need(args, 2, commands["order-status"].usage); err != nil {
		return err
	}
	if err := a.orders.UpdateOrderStatus(ctx, args[0], domain.OrderStatus(args[1])); err != nil {
		return err
	}
	for _, o := range a.orders.Orders() {
		if o.ID == args[0] {
			return a.print(o)
		}
	}
	return nil
}

type productFlags struct {
	input domain.ProductInput
	image string
}

func parseProductFlags(name string, a *app, args []string) (productFlags, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	var pf productFlags
	var price string
	fs.StringVar(&pf.input.Name, "name", "", "product name")
	fs.StringVar(&pf.input.Description, "description", "", "product description")
	fs.StringVar(&price, "price", "", "unit price")
	fs.StringVar(&pf.image, "image", "", "image file")
	if err := fs.Parse(args); err != nil {
		return pf, nil, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return pf, nil, fmt.Errorf("invalid price %q", price)
	}
	pf.input.Price = d
	return pf, fs.Args(), nil
}

func readImage(path string) (*domain.Image, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &domain.Image{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func addProduct(ctx context.Context, a *app, args []string) error {
	pf, _, err := parseProductFlags("add-product", a, args)
	if err != nil {
		return err
	}
	image, err := readImage(pf.image)
	if err != nil {
		return err
	}
	if image == nil {
		image = &domain.Image{}
	}
	product, err := a.catalog.AddProduct(ctx, pf.input, *image)
	if err != nil {
		return err
	}
	return a.say(product.ID)
}

func updateProduct(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: storefront %s", commands["update-product"].usage)
	}
	pf, _, err := parseProductFlags("update-product", a, args[1:])
	if err != nil {
		return err
	}
	image, err := readImage(pf.image)
	if err != nil {
		return err
	}
	product, err := a.catalog.UpdateProduct(ctx, args[0], pf.input, image)
	if err != nil {
		return err
	}
	return a.say(product.ID)
}

func deleteProduct(ctx context.Context, a *app, args []string) error {
	if err := need(args, 1, commands["delete-product"].usage); err != nil {
		return err
	}
	if err := a.catalog.DeleteProduct(ctx, args[0]); err != nil {
		return err
	}
	return a.say("deleted " + args[0])
}
