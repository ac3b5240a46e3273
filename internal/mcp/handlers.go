package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/nudge/internal/analyzer"
	"github.com/nvandessel/nudge/internal/assembly"
	"github.com/nvandessel/nudge/internal/composition"
	"github.com/nvandessel/nudge/internal/metrics"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/pathutil"
	"github.com/nvandessel/nudge/internal/ratelimit"
)

// libraryURI is the resource listing the loaded constraint library.
const libraryURI = "nudge://library"

// defaultStatsTop is how many injected constraints nudge_stats lists.
const defaultStatsTop = 5

// registerTools registers all nudge MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nudge_select",
		Description: "Count one agent interaction and return the process reminders to inject when it is an injection point",
	}, s.handleNudgeSelect)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nudge_complete",
		Description: "Signal that a step, level or layer of a composite constraint is done, or unlock a progressive level",
	}, s.handleNudgeComplete)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nudge_explain",
		Description: "Explain why a constraint does or does not activate for a context",
	}, s.handleNudgeExplain)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nudge_list",
		Description: "List constraints by priority, optionally only those matching a category",
	}, s.handleNudgeList)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nudge_check_removal",
		Description: "Check whether a constraint can be removed without breaking a composite",
	}, s.handleNudgeCheckRemoval)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "nudge_stats",
		Description: "Report selection statistics, sessions and library reloads",
	}, s.handleNudgeStats)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         libraryURI,
		Name:        "constraint-library",
		Description: "The loaded constraint library, highest priority first",
		MIMEType:    "text/markdown",
	}, s.handleLibraryResource)
}

// handleLibraryResource renders the current pack as a markdown table.
func (s *Server) handleLibraryResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	pack := s.holder.Current()
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      libraryURI,
				MIMEType: "text/markdown",
				Text:     assembly.Catalog(pack.Version(), pack.Constraints()),
			},
		},
	}, nil
}

// handleNudgeSelect implements the nudge_select tool. Without an explicit
// interaction it advances the session counter; with one it replays that
// interaction read-only, so a retried call returns the same reminders.
func (s *Server) handleNudgeSelect(ctx context.Context, req *sdk.CallToolRequest, args SelectInput) (_ *sdk.CallToolResult, _ SelectOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.recordTool("nudge_select", start, retErr, map[string]any{
			"session": args.Session, "file": pathutil.RedactPath(args.File), "top_k": args.TopK, "interaction": args.Interaction,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "nudge_select"); err != nil {
		return nil, SelectOutput{}, err
	}
	if args.Interaction < 0 {
		return nil, SelectOutput{}, &models.ArgumentError{Name: "interaction", Reason: "must not be negative"}
	}
	if args.TopK < 0 {
		return nil, SelectOutput{}, &models.ArgumentError{Name: "top_k", Reason: "must not be negative"}
	}
	format := s.format
	if args.Format != "" {
		f, err := assembly.ParseFormat(args.Format)
		if err != nil {
			return nil, SelectOutput{}, err
		}
		format = f
	}
	topK := s.topK
	if args.TopK > 0 {
		topK = args.TopK
	}

	pack := s.holder.Current()
	st := s.sessions.Get(args.Session)
	replay := args.Interaction > 0
	interaction := args.Interaction
	if !replay {
		interaction = st.NextInteraction()
	}

	tctx, err := s.buildContext(args.contextArgs(), interaction)
	if err != nil {
		return nil, SelectOutput{}, fmt.Errorf("building context: %w", err)
	}

	d, err := s.selector.Select(pack, tctx, st.Progress(), topK)
	if err != nil {
		s.metrics.RecordSelection(metrics.Selection{Outcome: metrics.OutcomeError, Duration: time.Since(start)})
		return nil, SelectOutput{}, fmt.Errorf("selecting constraints: %w", err)
	}

	compiled := assembly.NewCompiler().WithFormat(format).WithMaxTokens(s.maxTokens).Compile(models.ToReminders(d.Constraints))
	included := make(map[string]bool, len(compiled.IncludedConstraints))
	for _, id := range compiled.IncludedConstraints {
		included[id] = true
	}

	out := SelectOutput{
		Session:       st.ID(),
		Interaction:   interaction,
		Inject:        d.Inject,
		NextInjection: d.NextInjection,
		Reminders:     []models.Reminder{},
		Text:          compiled.Text,
		Scores:        make(map[string]float64, len(d.Scores)),
		Suppressed:    make([]SuppressedItem, 0, len(d.Suppressed)),
		Compositions:  make([]CompositionItem, 0, len(d.Compositions)),
		Excluded:      append([]string{}, compiled.ExcludedConstraints...),
		PackVersion:   pack.Version(),
	}

	var injected []models.ConstraintID
	for _, r := range models.ToReminders(d.Constraints) {
		if included[string(r.ID)] {
			out.Reminders = append(out.Reminders, r)
			injected = append(injected, r.ID)
		}
	}
	for id, score := range d.Scores {
		out.Scores[string(id)] = score
	}
	reasons := make([]string, 0, len(d.Suppressed))
	for _, sup := range d.Suppressed {
		out.Suppressed = append(out.Suppressed, SuppressedItem{
			ID:        string(sup.ID),
			Composite: string(sup.Composite),
			Reason:    string(sup.Reason),
		})
		reasons = append(reasons, string(sup.Reason))
	}
	for id, res := range d.Compositions {
		out.Compositions = append(out.Compositions, CompositionItem{
			ID:       string(id),
			Type:     string(res.Type),
			Eligible: idStrings(res.Eligible),
			NextStep: string(res.NextStep),
			Levels:   res.Levels,
		})
	}
	sort.Slice(out.Compositions, func(i, j int) bool { return out.Compositions[i].ID < out.Compositions[j].ID })

	if len(injected) > 0 && !replay {
		st.RecordInjection(interaction, injected...)
	}

	outcome := metrics.OutcomeSkipped
	if len(injected) > 0 {
		outcome = metrics.OutcomeInjected
	}
	s.metrics.RecordSelection(metrics.Selection{
		Outcome:    outcome,
		Duration:   time.Since(start),
		Activated:  len(d.Scores),
		Injected:   idStrings(injected),
		Suppressed: reasons,
	})

	event := map[string]any{
		"event":        "selection",
		"session":      st.ID(),
		"interaction":  interaction,
		"replay":       replay,
		"inject":       d.Inject,
		"selected":     idStrings(injected),
		"suppressed":   out.Suppressed,
		"excluded":     out.Excluded,
		"pack_version": pack.Version(),
	}
	if s.decisions.Tracing() {
		event["scores"] = out.Scores
		event["context"] = tctx
	}
	s.decisions.Log(event)

	s.logger.Debug("selection",
		"session", st.ID(),
		"interaction", interaction,
		"inject", d.Inject,
		"selected", len(injected),
		"suppressed", len(d.Suppressed))

	return nil, out, nil
}

// handleNudgeComplete implements the nudge_complete tool.
func (s *Server) handleNudgeComplete(ctx context.Context, req *sdk.CallToolRequest, args CompleteInput) (_ *sdk.CallToolResult, _ CompleteOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]any{"session": args.Session, "composite": args.Composite, "component": args.Component, "unlock": args.Unlock}
		if args.Level != nil {
			params["level"] = *args.Level
		}
		s.recordTool("nudge_complete", start, retErr, params)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "nudge_complete"); err != nil {
		return nil, CompleteOutput{}, err
	}

	pack := s.holder.Current()
	c, ok := pack.Get(models.ConstraintID(args.Composite))
	if !ok {
		return nil, CompleteOutput{}, &models.ArgumentError{Name: "composite", Reason: "unknown constraint " + args.Composite}
	}
	if !c.IsComposite() {
		return nil, CompleteOutput{}, &models.ArgumentError{Name: "composite", Reason: args.Composite + " is not a composite"}
	}
	comp := *c.Composition
	st := s.sessions.Get(args.Session)

	switch {
	case args.Component != "" && args.Level != nil:
		return nil, CompleteOutput{}, &models.ArgumentError{Name: "component", Reason: "give a component or a level, not both"}

	case args.Component != "":
		if comp.Type.LevelBased() {
			return nil, CompleteOutput{}, &models.ArgumentError{Name: "component", Reason: fmt.Sprintf("%s composites complete by level", comp.Type)}
		}
		if _, ok := comp.Reference(models.ConstraintID(args.Component)); !ok {
			return nil, CompleteOutput{}, &models.ArgumentError{Name: "component", Reason: fmt.Sprintf("%s is not a component of %s", args.Component, c.ID)}
		}
		st.CompleteComponent(c.ID, models.ConstraintID(args.Component))

	case args.Level != nil:
		if !comp.Type.LevelBased() {
			return nil, CompleteOutput{}, &models.ArgumentError{Name: "level", Reason: fmt.Sprintf("%s composites have no levels", comp.Type)}
		}
		if !containsInt(comp.DeclaredLevels(), *args.Level) {
			return nil, CompleteOutput{}, &models.ArgumentError{Name: "level", Reason: fmt.Sprintf("level %d is not declared by %s", *args.Level, c.ID)}
		}
		if args.Unlock {
			if comp.Type != models.CompositionProgressive {
				return nil, CompleteOutput{}, &models.ArgumentError{Name: "unlock", Reason: "only progressive levels can be unlocked"}
			}
			st.UnlockLevel(c.ID, *args.Level)
		} else {
			st.CompleteLevel(c.ID, *args.Level)
		}

	default:
		return nil, CompleteOutput{}, &models.ArgumentError{Name: "component", Reason: "a component or a level is required"}
	}

	progress := st.Progress().For(c.ID)
	out := CompleteOutput{
		Session:             st.ID(),
		Composite:           string(c.ID),
		Type:                string(comp.Type),
		CompletedComponents: sortedIDs(progress.CompletedComponents),
		CompletedLevels:     sortedLevels(progress.CompletedLevels),
		UnlockedLevels:      sortedLevels(progress.UnlockedLevels),
	}

	switch {
	case comp.Type == models.CompositionSequential:
		out.NextStep = string(composition.NextStep(comp, progress))
		out.AllCompleted = out.NextStep == ""
	case comp.Type.LevelBased():
		if next, open := composition.GetNextHierarchyLevel(comp.DeclaredLevels(), progress.CompletedLevels); open {
			out.NextLevel = &next
		} else {
			out.AllCompleted = true
		}
	default:
		out.AllCompleted = len(out.CompletedComponents) == len(comp.Components)
	}

	s.decisions.Log(map[string]any{
		"event":         "completion",
		"session":       st.ID(),
		"composite":     out.Composite,
		"component":     args.Component,
		"level":         args.Level,
		"unlock":        args.Unlock,
		"all_completed": out.AllCompleted,
	})

	return nil, out, nil
}

// handleNudgeExplain implements the nudge_explain tool.
func (s *Server) handleNudgeExplain(ctx context.Context, req *sdk.CallToolRequest, args ExplainInput) (_ *sdk.CallToolResult, _ ExplainOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.recordTool("nudge_explain", start, retErr, map[string]any{"id": args.ID, "file": pathutil.RedactPath(args.File)})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "nudge_explain"); err != nil {
		return nil, ExplainOutput{}, err
	}

	pack := s.holder.Current()
	c, ok := pack.Get(models.ConstraintID(args.ID))
	if !ok {
		return nil, ExplainOutput{}, &models.ArgumentError{Name: "id", Reason: "unknown constraint " + args.ID}
	}

	tctx, err := s.buildContext(args.contextArgs(), 0)
	if err != nil {
		return nil, ExplainOutput{}, fmt.Errorf("building context: %w", err)
	}

	ex := s.selector.Engine().Explain(c, tctx)
	out := ExplainOutput{
		ID:           string(c.ID),
		Title:        c.Title,
		Activated:    ex.Activated,
		Reason:       ex.Reason,
		Score:        ex.Score,
		BaseScore:    ex.BaseScore,
		Threshold:    ex.Threshold,
		Dimensions:   make([]DimensionItem, 0, len(ex.Dimensions)),
		Boosts:       append([]string{}, ex.Boosts...),
		VetoedBy:     ex.VetoedBy,
		ReferencedBy: idStrings(pack.ReferencedBy(c.ID)),
		Components:   []string{},
	}
	for _, d := range ex.Dimensions {
		out.Dimensions = append(out.Dimensions, DimensionItem{
			Dimension: d.Dimension,
			Fraction:  d.Fraction,
			Matched:   append([]string{}, d.Matched...),
			Declared:  d.Declared,
		})
	}
	if c.IsComposite() {
		for _, ref := range c.Composition.Components {
			out.Components = append(out.Components, string(ref.ID))
		}
	}
	return nil, out, nil
}

// handleNudgeList implements the nudge_list tool.
func (s *Server) handleNudgeList(ctx context.Context, req *sdk.CallToolRequest, args ListInput) (_ *sdk.CallToolResult, _ ListOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.recordTool("nudge_list", start, retErr, map[string]any{"category": args.Category, "limit": args.Limit})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "nudge_list"); err != nil {
		return nil, ListOutput{}, err
	}
	if args.Limit < 0 {
		return nil, ListOutput{}, &models.ArgumentError{Name: "limit", Reason: "must not be negative"}
	}

	pack := s.holder.Current()
	limit := args.Limit
	if limit == 0 {
		limit = pack.Len()
	}

	cs := []models.Constraint{}
	if limit > 0 {
		var err error
		if args.Category != "" {
			cs, err = pack.GetTopByCategory(s.selector.Engine(), args.Category, limit)
		} else {
			cs, err = pack.GetTopByPriority(limit)
		}
		if err != nil {
			return nil, ListOutput{}, err
		}
	}

	items := make([]ConstraintListItem, 0, len(cs))
	for _, c := range cs {
		kind := "atomic"
		if c.IsComposite() {
			kind = string(c.Composition.Type)
		}
		items = append(items, ConstraintListItem{
			ID:        string(c.ID),
			Title:     c.Title,
			Priority:  c.Priority,
			Kind:      kind,
			Keywords:  append([]string{}, c.Trigger.Keywords...),
			Threshold: c.Trigger.ConfidenceThreshold,
		})
	}

	return nil, ListOutput{
		Constraints: items,
		Count:       len(items),
		Total:       pack.Len(),
		PackVersion: pack.Version(),
	}, nil
}

// handleNudgeCheckRemoval implements the nudge_check_removal tool. The
// library is never changed.
func (s *Server) handleNudgeCheckRemoval(ctx context.Context, req *sdk.CallToolRequest, args CheckRemovalInput) (_ *sdk.CallToolResult, _ CheckRemovalOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.recordTool("nudge_check_removal", start, retErr, map[string]any{"id": args.ID})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "nudge_check_removal"); err != nil {
		return nil, CheckRemovalOutput{}, err
	}

	out := CheckRemovalOutput{ID: args.ID, ReferencedBy: []string{}}
	err := s.holder.Current().ValidateRemoval(models.ConstraintID(args.ID))

	var inUse *models.ConstraintInUseError
	switch {
	case err == nil:
		out.Removable = true
	case errors.As(err, &inUse):
		out.ReferencedBy = idStrings(inUse.ReferencedBy)
	default:
		return nil, CheckRemovalOutput{}, err
	}
	return nil, out, nil
}

// handleNudgeStats implements the nudge_stats tool.
func (s *Server) handleNudgeStats(ctx context.Context, req *sdk.CallToolRequest, args StatsInput) (_ *sdk.CallToolResult, _ StatsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.recordTool("nudge_stats", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "nudge_stats"); err != nil {
		return nil, StatsOutput{}, err
	}

	snap, err := s.metrics.Snapshot()
	if err != nil {
		return nil, StatsOutput{}, fmt.Errorf("gathering metrics: %w", err)
	}
	top := args.Top
	if top <= 0 {
		top = defaultStatsTop
	}

	pack := s.holder.Current()
	sched := s.selector.Scheduler()
	out := StatsOutput{
		PackVersion:     pack.Version(),
		PackConstraints: pack.Len(),
		Cadence:         sched.Cadence(),
		TopK:            s.topK,
		Sessions:        []SessionItem{},
		Selections:      snap.Selections,
		TopInjected:     snap.TopInjected(top),
		Suppressed:      snap.Suppressed,
		Reloads:         snap.Reloads,
		ToolCalls:       snap.ToolCalls,
	}
	if snap.SelectionCount > 0 {
		out.MeanSelectionMs = snap.SelectionSeconds / float64(snap.SelectionCount) * 1000
	}

	for _, id := range s.sessions.IDs() {
		st, ok := s.sessions.Lookup(id)
		if !ok {
			continue
		}
		n := st.Interaction()
		next := n + 1
		if !sched.ShouldInject(next) {
			next = sched.NextInjection(next)
		}
		out.Sessions = append(out.Sessions, SessionItem{ID: id, Interaction: n, NextInjection: next})
	}
	return nil, out, nil
}

// buildContext turns tool arguments into a trigger context.
func (s *Server) buildContext(args contextArgs, interaction int) (*models.TriggerContext, error) {
	b := analyzer.NewContextBuilder().
		WithText(args.prompt).
		WithKeywords(args.keywords...).
		WithFile(args.file).
		WithRepoRoot(s.root).
		WithPatterns(args.patterns...).
		WithEnvironment(s.environment).
		WithInteraction(interaction)
	for _, c := range args.categories {
		b.WithCategory(c.Category, c.Value, c.Priority)
	}
	return b.Build()
}

// recordTool counts a tool call and appends it to the decision log.
func (s *Server) recordTool(tool string, start time.Time, err error, params map[string]any) {
	s.metrics.RecordToolCall(tool, err)

	event := map[string]any{
		"event":       "tool_call",
		"tool":        tool,
		"duration_ms": time.Since(start).Milliseconds(),
		"status":      "ok",
	}
	if err != nil {
		event["status"] = "error"
		event["error"] = err.Error()
		s.logger.Warn("tool call failed", "tool", tool, "error", err)
	}
	if len(params) > 0 {
		event["params"] = params
	}
	s.decisions.Log(event)
}

func idStrings(ids []models.ConstraintID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func sortedIDs(set map[models.ConstraintID]bool) []string {
	out := make([]string, 0, len(set))
	for id, ok := range set {
		if ok {
			out = append(out, string(id))
		}
	}
	sort.Strings(out)
	return out
}

func sortedLevels(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for l, ok := range set {
		if ok {
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
