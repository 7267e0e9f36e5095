package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rsharan/slotflow/pkg/slotflow"
	"github.com/rsharan/slotflow/pkg/slotflow/config"
	"github.com/rsharan/slotflow/pkg/slotflow/extcall"
	"github.com/rsharan/slotflow/pkg/slotflow/extract"
	"github.com/rsharan/slotflow/pkg/slotflow/merge"
	"github.com/rsharan/slotflow/pkg/slotflow/nodes"
	"github.com/rsharan/slotflow/pkg/slotflow/prompt"
	"github.com/rsharan/slotflow/pkg/slotflow/registry"
	"github.com/rsharan/slotflow/pkg/slotflow/state"
	"github.com/rsharan/slotflow/pkg/slotflow/store"
	"github.com/rsharan/slotflow/pkg/slotflow/validate"
)

// Node identifiers of the intake graph.
const (
	nodeCollectName     = "collect_name"
	nodeCollectPhone    = "collect_phone"
	nodeValidateCust    = "validate_customer"
	nodeRetroScan       = "retro_scan"
	nodeLookupCustomer  = "lookup_customer"
	nodeCollectVehicle  = "collect_vehicle"
	nodeCollectService  = "collect_service"
	nodeCollectDate     = "collect_date"
	nodeValidateBooking = "validate_booking"
	nodeAvailability    = "check_availability"
	nodeConfirm         = "confirm"
	nodeCreateBooking   = "create_booking"
	nodeDone            = "done"
	nodeCancel          = "cancel"
)

// Service is the assembled intake flow, ready to take messages.
type Service struct {
	session *slotflow.Session
	store   store.Store
}

type options struct {
	store    store.Store
	locker   store.Locker
	backends Backends
	clock    func() time.Time
	logger   *slog.Logger
	model    func(field, description string) (extract.Strategy, error)
}

// Option configures Service assembly.
type Option func(*options)

// WithStore selects the persistence backend. Defaults to in-memory.
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLocker replaces the per-key lock, e.g. with the Redis locker.
func WithLocker(l store.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithBackends wires the external systems. Defaults to the stubs.
func WithBackends(b Backends) Option {
	return func(o *options) {
		o.backends = b
	}
}

// WithClock fixes the clock used for date resolution and validation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New assembles the intake flow from configuration.
func New(cfg config.Config, opts ...Option) (*Service, error) {
	o := &options{
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = store.NewMemoryStore()
	}
	if o.backends == (Backends{}) {
		o.backends, _ = StubBackends()
	}
	if o.backends.Booking == nil {
		return nil, errors.New("booking backend is required")
	}

	engine := newEngine(cfg, o.logger)
	scanner := newScanner(cfg, engine, o.logger)
	reg := patternRegistry(o)
	tiers := newTiers(cfg, o, reg)

	graph, err := buildGraph(cfg, engine, scanner, tiers, reg, o)
	if err != nil {
		return nil, fmt.Errorf("assemble intake graph: %w", err)
	}

	sessOpts := []slotflow.SessionOption{
		slotflow.WithHistoryLimit(cfg.HistoryLimit),
		slotflow.WithFallbackResponse(cfg.Fallback),
		slotflow.WithSessionLogger(o.logger),
		slotflow.WithLockTTL(cfg.LockTTL.Std()),
	}
	if o.locker != nil {
		sessOpts = append(sessOpts, slotflow.WithSessionLocker(o.locker))
	}

	return &Service{
		session: slotflow.NewSession(graph, o.store, sessOpts...),
		store:   o.store,
	}, nil
}

// Message processes one inbound utterance for the conversation key.
func (s *Service) Message(ctx context.Context, key, text string) (*slotflow.StepResult, error) {
	return s.session.Step(ctx, key, text)
}

// Snapshot exposes the conversation's current field state.
func (s *Service) Snapshot(ctx context.Context, key string) (state.Snapshot, error) {
	return s.session.Snapshot(ctx, key)
}

// Reset discards the conversation.
func (s *Service) Reset(ctx context.Context, key string) error {
	return s.session.Reset(ctx, key)
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

func newEngine(cfg config.Config, logger *slog.Logger) *merge.Engine {
	required := cfg.Required
	if len(required) == 0 {
		required = Required
	}

	denylists := cfg.Denylists
	if len(denylists) == 0 {
		denylists = map[string][]string{"person-name": NameDenylist()}
	}
	categories := cfg.FieldCategories
	if len(categories) == 0 {
		categories = map[string]string{FieldName: "person-name"}
	}

	engineOpts := []merge.Option{
		merge.WithRequired(required...),
		merge.WithMinConfidence(cfg.MinConfidence),
		merge.WithFuzzyThreshold(cfg.FuzzyThreshold),
		merge.WithLogger(logger),
	}
	for category, entries := range denylists {
		engineOpts = append(engineOpts, merge.WithDenylist(category, merge.NewDenylist(entries...)))
	}
	for path, category := range categories {
		engineOpts = append(engineOpts, merge.WithFieldCategory(path, category))
	}
	return merge.NewEngine(engineOpts...)
}

func newScanner(cfg config.Config, engine *merge.Engine, logger *slog.Logger) *extract.Scanner {
	return extract.NewScanner(engine,
		extract.WithWindow(cfg.Retro.Window),
		extract.WithMinTurns(cfg.Retro.MinTurns),
		extract.WithDecay(cfg.Retro.Decay),
		extract.WithScanTimeout(cfg.Retro.Timeout.Std()),
		extract.WithScanLogger(logger),
	)
}

// fieldTiers holds the per-field extraction chains.
type fieldTiers struct {
	name    []extract.Tier
	phone   []extract.Tier
	vehicle []extract.Tier
	service []extract.Tier
	date    []extract.Tier
	yesNo   []extract.Tier
	plate   extract.Strategy
}

// patternRegistry indexes the pattern strategies by field domain, so
// the graph assembly and the retro scan resolve them from one place.
func patternRegistry(o *options) *registry.Registry[extract.Strategy] {
	reg := registry.New[extract.Strategy]()
	reg.Register("name", extract.Name())
	reg.Register("phone", extract.Phone())
	reg.Register("vehicle", extract.Lexicon(VehicleMakes))
	reg.Register("service", extract.Lexicon(ServiceTypes))
	reg.Register("date", extract.Date(o.clock))
	reg.Register("yesno", extract.YesNo())
	reg.Register("plate", extract.Plate())
	return reg
}

func newTiers(cfg config.Config, o *options, reg *registry.Registry[extract.Strategy]) fieldTiers {
	pt := cfg.Tiers.PatternTimeout.Std()
	mt := cfg.Tiers.ModelTimeout.Std()

	pattern := func(name, domain string, ceiling float64) extract.Tier {
		return extract.Tier{
			Name: name, Strategy: reg.MustLookup(domain), Source: state.SourcePrimary,
			Ceiling: ceiling, Timeout: pt,
		}
	}

	ft := fieldTiers{
		name:    []extract.Tier{pattern("name-pattern", "name", 0.7)},
		phone:   []extract.Tier{pattern("phone-pattern", "phone", 0.9)},
		vehicle: []extract.Tier{pattern("make-lexicon", "vehicle", 0.8)},
		service: []extract.Tier{pattern("service-lexicon", "service", 0.8)},
		date:    []extract.Tier{pattern("date-pattern", "date", 0.75)},
		yesNo:   []extract.Tier{pattern("yesno-pattern", "yesno", 0.85)},
		plate:   reg.MustLookup("plate"),
	}

	// the model tier backs up the fields free text makes hard;
	// strictly lower ceiling than a direct pattern hit
	if o.model != nil {
		model := func(field, description string, into *[]extract.Tier) {
			s, err := o.model(field, description)
			if err != nil {
				return
			}
			*into = append(*into, extract.Tier{
				Name: field + "-model", Strategy: s, Source: state.SourceFallback,
				Ceiling: 0.8, Timeout: mt,
			})
		}
		model(FieldName, "the caller's name", &ft.name)
		model(FieldPhone, "a ten digit Indian mobile number", &ft.phone)
		model(FieldMake, "the vehicle manufacturer", &ft.vehicle)
		model(FieldService, "the requested workshop service", &ft.service)
		model(FieldDate, "the requested appointment date in YYYY-MM-DD", &ft.date)
	}
	return ft
}

// WithModelTier enables the OpenAI fallback tier. The factory is
// called once per backed field.
func WithModelTier(cfg config.Config) Option {
	return func(o *options) {
		key := cfg.APIKey()
		if key == "" {
			return
		}
		o.model = func(field, description string) (extract.Strategy, error) {
			return extract.NewModelExtractor(key, cfg.OpenAI.Model, field, description)
		}
	}
}

func buildGraph(
	cfg config.Config,
	engine *merge.Engine,
	scanner *extract.Scanner,
	tiers fieldTiers,
	reg *registry.Registry[extract.Strategy],
	o *options,
) (*slotflow.CompiledGraph[*state.Record], error) {
	renderer := prompt.NewRenderer()
	callerOpts := func() []extcall.CallerOption {
		return []extcall.CallerOption{
			extcall.WithTimeout(cfg.External.Timeout.Std()),
			extcall.WithRetry(cfg.RetryConfig()),
			extcall.WithLogger(o.logger),
		}
	}

	g := slotflow.NewGraph[*state.Record]()

	g.AddNode(nodeCollectName, nodes.ExtractField(engine, FieldName,
		"Namaste! This is AutoCare. May I have your name?", tiers.name...))
	g.AddConditionalEdge(nodeCollectName,
		nodes.RouteIf(nodes.HasField(FieldName), nodeCollectPhone, slotflow.Await))

	g.AddNode(nodeCollectPhone, nodes.ExtractField(engine, FieldPhone,
		"Thanks! What's your mobile number?", tiers.phone...))
	g.AddConditionalEdge(nodeCollectPhone,
		nodes.RouteIf(nodes.HasField(FieldPhone), nodeValidateCust, slotflow.Await))

	// on a validation failure the correction prompt pauses the turn;
	// the next turn re-enters here with the invalid field cleared and
	// falls through to the matching collection node
	g.AddNode(nodeValidateCust, nodes.ValidateBundle(engine, validate.Customer(), true, "customer"))
	g.AddConditionalEdge(nodeValidateCust, nodes.RouteFirst(nodeRetroScan,
		nodes.Case{When: nodes.Responded, To: slotflow.Await},
		nodes.Case{When: nodes.Not(nodes.HasField(FieldName)), To: nodeCollectName},
		nodes.Case{When: nodes.Not(nodes.HasField(FieldPhone)), To: nodeCollectPhone},
	))

	afterRetro := nodeCollectVehicle
	if o.backends.Directory != nil {
		afterRetro = nodeLookupCustomer
	}
	g.AddNode(nodeRetroScan, nodes.RetroScan(scanner,
		extract.FieldSpec{Path: FieldMake, Strategy: reg.MustLookup("vehicle"), Ceiling: 0.8},
		extract.FieldSpec{Path: FieldService, Strategy: reg.MustLookup("service"), Ceiling: 0.8},
		extract.FieldSpec{Path: FieldDate, Strategy: reg.MustLookup("date"), Ceiling: 0.75},
		extract.FieldSpec{Path: FieldPlate, Strategy: tiers.plate, Ceiling: 0.9},
	))
	g.AddEdge(nodeRetroScan, afterRetro)

	if o.backends.Directory != nil {
		g.AddNode(nodeLookupCustomer, nodes.CallExternal(engine,
			extcall.NewCaller(o.backends.Directory, callerOpts()...),
			false, "", "customer"))
		g.AddEdge(nodeLookupCustomer, nodeCollectVehicle)
	}

	g.AddNode(nodeCollectVehicle, nodes.ExtractField(engine, FieldMake,
		"Which car is it? (Maruti, Tata, Mahindra...)", tiers.vehicle...))
	g.AddConditionalEdge(nodeCollectVehicle,
		nodes.RouteIf(nodes.HasField(FieldMake), nodeCollectService, slotflow.Await))

	g.AddNode(nodeCollectService, nodes.ExtractField(engine, FieldService,
		"What service do you need - general service, oil change, inspection?", tiers.service...))
	g.AddConditionalEdge(nodeCollectService,
		nodes.RouteIf(nodes.HasField(FieldService), nodeCollectDate, slotflow.Await))

	g.AddNode(nodeCollectDate, nodes.ExtractField(engine, FieldDate,
		"When should we schedule it?", tiers.date...))
	g.AddConditionalEdge(nodeCollectDate,
		nodes.RouteIf(nodes.HasField(FieldDate), nodeValidateBooking, slotflow.Await))

	afterValidate := nodeConfirm
	if o.backends.Availability != nil {
		afterValidate = nodeAvailability
	}
	g.AddNode(nodeValidateBooking, nodes.ValidateBundle(engine,
		validate.Chain(validate.Vehicle(), validate.Appointment(o.clock, serviceCatalogue()...)),
		true, "vehicle", "appointment"))
	g.AddConditionalEdge(nodeValidateBooking, nodes.RouteFirst(afterValidate,
		nodes.Case{When: nodes.Responded, To: slotflow.Await},
		nodes.Case{When: nodes.Not(nodes.HasField(FieldMake)), To: nodeCollectVehicle},
		nodes.Case{When: nodes.Not(nodes.HasField(FieldService)), To: nodeCollectService},
		nodes.Case{When: nodes.Not(nodes.HasField(FieldDate)), To: nodeCollectDate},
	))

	if o.backends.Availability != nil {
		g.AddNode(nodeAvailability, nodes.CallExternal(engine,
			extcall.NewCaller(o.backends.Availability, callerOpts()...),
			false, "Our scheduling system is slow right now, bear with me.", "appointment"))
		g.AddEdge(nodeAvailability, nodeConfirm)
	}

	g.AddNode(nodeConfirm, confirmNode(engine, renderer, tiers.yesNo))
	g.AddConditionalEdge(nodeConfirm, nodes.RouteFirst(slotflow.Await,
		nodes.Case{When: nodes.SaidYes(FieldConfirm), To: nodeCreateBooking},
		nodes.Case{When: nodes.SaidNo(FieldConfirm), To: nodeCancel},
	))

	g.AddNode(nodeCreateBooking, nodes.CallExternal(engine,
		extcall.NewCaller(o.backends.Booking, callerOpts()...),
		false, "Couldn't reach the booking system, I'll retry on your next message.",
		"customer", "vehicle", "appointment"))
	g.AddConditionalEdge(nodeCreateBooking,
		nodes.RouteIf(nodes.HasField(FieldBooking), nodeDone, slotflow.Await))

	g.AddNode(nodeDone, nodes.Respond(renderer.Func(
		"Done! ${appointment.service} for your ${vehicle.make} on ${appointment.date} at ${appointment.slot}. Booking id ${appointment.booking_id}. See you, ${customer.name}!")))
	g.AddEdge(nodeDone, slotflow.Completed)

	g.AddNode(nodeCancel, nodes.Say("No problem, nothing is booked. Message me anytime to start again."))
	g.AddEdge(nodeCancel, slotflow.Cancelled)

	g.SetEntry(nodeCollectName)
	return g.Compile()
}

// confirmNode shows the booking summary on first arrival and reads
// the yes/no answer on the turns after. The distinction matters: words
// like "ok" in the utterance that brought us here must not count as
// consent.
func confirmNode(engine *merge.Engine, renderer *prompt.Renderer, yesNo []extract.Tier) nodes.Node {
	summary := renderer.Func(
		"To confirm: ${appointment.service} for your ${vehicle.make} on ${appointment.date} at ${appointment.slot}, under ${customer.name} (${customer.phone}). Shall I book it?")
	ask := nodes.ExtractField(engine, FieldConfirm, "", yesNo...)

	return func(ctx slotflow.Context, rec *state.Record) (*state.Record, error) {
		if rec.Cursor != nodeConfirm {
			// first arrival inside a longer step
			rec.Response = summary(rec)
			rec.ShouldConfirm = true
			return rec, nil
		}
		rec, err := ask(ctx, rec)
		if err != nil {
			return rec, err
		}
		if !rec.Has(FieldConfirm) {
			rec.Response = summary(rec)
			rec.ShouldConfirm = true
		}
		return rec, nil
	}
}
