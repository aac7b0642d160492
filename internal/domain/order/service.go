package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/modifier"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// CreateRequest holds the input for placing an order. ProductIDs may repeat;
// every occurrence becomes its own line.
type CreateRequest struct {
	UserID     string
	Contact    Contact
	ProductIDs []string
}

// CreateResult holds a placed order and the requested ids that were dropped
// because the product is missing or unpublished.
type CreateResult struct {
	Order   *Order
	Skipped []string
}

// Service builds orders.
type Service struct {
	tx        Transactor
	users     user.Repository
	products  product.Repository
	resolver  *pricing.Resolver
	modifiers modifier.Provider
	orders    Repository
	now       func() time.Time

	tracer  trace.Tracer
	created metric.Int64Counter
	skipped metric.Int64Counter
}

// Option configures a Service.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	tx Transactor,
	users user.Repository,
	products product.Repository,
	resolver *pricing.Resolver,
	modifiers modifier.Provider,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	created, err := meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders committed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	skipped, err := meter.Int64Counter("storefront.order_lines.skipped",
		metric.WithDescription("Requested product ids dropped from orders"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "skipped counter")
	}

	return &Service{
		tx:        tx,
		users:     users,
		products:  products,
		resolver:  resolver,
		modifiers: modifiers,
		orders:    orders,
		now:       time.Now,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
		created:   created,
		skipped:   skipped,
	}, nil
}

// CreateOrder stores the order shell, one line per usable product id, and
// the final totals in a single transaction. Missing or unpublished products
// are skipped and reported in the result. An empty id list yields an order
// with zero totals.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (_ *CreateResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Int("order.requested_lines", len(req.ProductIDs)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	var result *CreateResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.build(ctx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	o := result.Order
	s.created.Add(ctx, 1)
	if n := len(result.Skipped); n > 0 {
		s.skipped.Add(ctx, int64(n))
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.lines", len(o.Lines)),
	)
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int("lines", len(o.Lines)),
		zap.Strings("skipped", result.Skipped),
		zap.Stringer("subtotal", o.Subtotal),
		zap.Stringer("discount", o.Discount),
		zap.Int("tax_rate", o.TaxRate),
		zap.Stringer("total", o.Total),
	)
	return result, nil
}

func (s *Service) build(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Contact:   snapshotContact(req.Contact, u),
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	var skipped []string
	subtotal := decimal.Zero
	for _, id := range req.ProductIDs {
		p, ok, err := s.orderable(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			skipped = append(skipped, id)
			continue
		}

		price, err := s.resolver.ResolveFor(ctx, u, p)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve price for %s", id)
		}

		line := Line{
			ID:         uuid.New().String(),
			OrderID:    o.ID,
			ProductID:  p.ID,
			Position:   len(o.Lines) + 1,
			BasePrice:  price.Base,
			FinalPrice: price.Final,
		}
		if err := s.orders.InsertLine(ctx, &line); err != nil {
			return nil, errors.Wrap(err, "insert order line")
		}
		o.Lines = append(o.Lines, line)
		subtotal = subtotal.Add(price.Final)
	}
	if len(skipped) > 0 {
		zctx.From(ctx).Debug("Skipped unavailable products",
			zap.String("order_id", o.ID),
			zap.Strings("product_ids", skipped),
		)
	}

	taxRate, err := s.modifiers.TaxRate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get tax rate")
	}
	discount, err := s.modifiers.Discount(ctx, subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "get discount")
	}

	o.Totals = ComputeTotals(subtotal, discount, taxRate)
	if err := s.orders.UpdateTotals(ctx, o.ID, o.Totals); err != nil {
		return nil, errors.Wrap(err, "update order totals")
	}

	return &CreateResult{Order: o, Skipped: skipped}, nil
}

// orderable loads a product and reports whether it may be ordered. Missing
// and unpublished products are not errors.
func (s *Service) orderable(ctx context.Context, id string) (*product.Product, bool, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "get product %s", id)
	}
	if !p.Published {
		return nil, false, nil
	}
	return p, true, nil
}

// Get returns a stored order with its lines.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// snapshotContact copies the checkout contact, filling name and email from
// the account when the request leaves them blank.
func snapshotContact(c Contact, u *user.User) Contact {
	if c.Name == "" {
		c.Name = u.Name
	}
	if c.Email == "" {
		c.Email = u.Email
	}
	return c
}
