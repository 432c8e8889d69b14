package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	qb "github.com/riskibarqy/korfbal-live/internal/platform/querybuilder"
	"github.com/sourcegraph/conc/pool"
)

// MatchStore implements match.Repository and match.Store. WithinMatch takes a
// row lock on match_data, which serialises commands on one match across
// instances.
type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

const matchOverviewFrom = "matches m JOIN match_data d ON d.match_id = m.id"

var matchOverviewColumns = []string{
	"m.id", "m.home_team_id", "m.away_team_id", "m.season_id", "m.start_time",
	"d.id AS data_id", "d.status", "d.home_score", "d.away_score", "d.parts",
	"d.current_part", "d.part_length_seconds", "d.updated_at",
}

func (s *MatchStore) GetByID(ctx context.Context, matchID string) (match.Match, bool, error) {
	query, args, err := qb.Select(qb.ModelColumns(matchTableModel{})...).
		From("matches").
		Where(qb.Eq("id", matchID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build get match query: %w", err)
	}

	var row matchTableModel
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, classify(fmt.Errorf("get match id=%s: %w", matchID, err))
	}
	return matchFromRow(row), true, nil
}

func (s *MatchStore) GetData(ctx context.Context, matchID string) (match.Data, bool, error) {
	query, args, err := qb.Select("*").
		From("match_data").
		Where(qb.Eq("match_id", matchID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return match.Data{}, false, fmt.Errorf("build get match data query: %w", err)
	}

	var row matchDataTableModel
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Data{}, false, nil
		}
		return match.Data{}, false, classify(fmt.Errorf("get match data match_id=%s: %w", matchID, err))
	}
	return dataFromRow(row), true, nil
}

func (s *MatchStore) List(ctx context.Context, q match.Query) ([]match.Overview, error) {
	conds := make([]qb.Condition, 0, 5)
	if len(q.TeamIDs) > 0 {
		ids := anySlice(q.TeamIDs)
		conds = append(conds, qb.Or(qb.In("m.home_team_id", ids), qb.In("m.away_team_id", ids)))
	}
	if q.SeasonID != "" {
		conds = append(conds, qb.Eq("m.season_id", q.SeasonID))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]any, 0, len(q.Statuses))
		for _, st := range q.Statuses {
			statuses = append(statuses, string(st))
		}
		conds = append(conds, qb.In("d.status", statuses))
	}
	if !q.From.IsZero() {
		conds = append(conds, qb.Gte("m.start_time", q.From.UTC()))
	}
	if !q.To.IsZero() {
		conds = append(conds, qb.Lt("m.start_time", q.To.UTC()))
	}
	order := "m.start_time ASC"
	if q.Descending {
		order = "m.start_time DESC"
	}

	query, args, err := qb.Select(matchOverviewColumns...).
		From(matchOverviewFrom).
		Where(conds...).
		OrderBy(order, "m.id").
		Limit(q.Limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list matches query: %w", err)
	}

	var rows []matchOverviewModel
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(fmt.Errorf("list matches: %w", err))
	}

	out := make([]match.Overview, 0, len(rows))
	for _, row := range rows {
		out = append(out, match.Overview{
			Match: matchFromRow(row.matchTableModel),
			Data: dataFromRow(matchDataTableModel{
				ID:                row.DataID,
				MatchID:           row.ID,
				Status:            row.Status,
				HomeScore:         row.HomeScore,
				AwayScore:         row.AwayScore,
				Parts:             row.Parts,
				CurrentPart:       row.CurrentPart,
				PartLengthSeconds: row.PartLengthSeconds,
				UpdatedAt:         row.UpdatedAt,
			}),
		})
	}
	return out, nil
}

// Create inserts the fixture, its live data and its groups in one transaction.
func (s *MatchStore) Create(ctx context.Context, m match.Match, data match.Data, groups []playergroup.Group) error {
	if err := data.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin create match tx: %w", err))
	}
	defer rollback(tx)

	query, args, err := qb.InsertModel("matches", matchTableModel{
		ID:         m.ID,
		HomeTeamID: m.HomeTeamID,
		AwayTeamID: m.AwayTeamID,
		SeasonID:   m.SeasonID,
		StartTime:  m.StartTime.UTC(),
	}, "")
	if err != nil {
		return fmt.Errorf("build insert match query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return classify(fmt.Errorf("insert match id=%s: %w", m.ID, err))
	}

	query, args, err = qb.InsertModel("match_data", dataToRow(data), "")
	if err != nil {
		return fmt.Errorf("build insert match data query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return classify(fmt.Errorf("insert match data id=%s: %w", data.ID, err))
	}

	for _, g := range groups {
		if err := upsertGroup(ctx, tx, g); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit create match tx: %w", err))
	}
	return nil
}

func (s *MatchStore) Load(ctx context.Context, matchDataID string) (match.State, error) {
	st, err := loadState(ctx, s.db, matchDataID, false)
	return st, classify(err)
}

func (s *MatchStore) WithinMatch(ctx context.Context, matchDataID string, fn func(ctx context.Context, tx match.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin match tx: %w", err))
	}
	defer rollback(tx)

	st, err := loadState(ctx, tx, matchDataID, true)
	if err != nil {
		return classify(err)
	}

	mtx := &pgTx{tx: tx, state: &st}
	if err := fn(ctx, mtx); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit match tx match_data=%s: %w", matchDataID, err))
	}

	for _, hook := range mtx.hooks {
		hook()
	}
	return nil
}

// loadState reads the match data row first; with lock set that read takes
// the row lock and the remaining reads run sequentially on the transaction.
// Without a lock the child tables are read concurrently.
func loadState(ctx context.Context, q queryer, matchDataID string, lock bool) (match.State, error) {
	sel := qb.Select("*").From("match_data").Where(qb.Eq("id", matchDataID)).Limit(1)
	if lock {
		sel = sel.ForUpdate()
	}
	query, args, err := sel.ToSQL()
	if err != nil {
		return match.State{}, fmt.Errorf("build load match data query: %w", err)
	}

	var dataRow matchDataTableModel
	if err := getContext(ctx, q, &dataRow, query, args...); err != nil {
		if isNotFound(err) {
			return match.State{}, fmt.Errorf("%w: %s", match.ErrDataNotFound, matchDataID)
		}
		return match.State{}, fmt.Errorf("load match data id=%s: %w", matchDataID, err)
	}

	st := match.State{Data: dataFromRow(dataRow)}
	var (
		matchRow  matchTableModel
		partRows  []matchPartTableModel
		eventRows []matchEventTableModel
		groupRows []playerGroupTableModel
		players   []matchPlayerTableModel
	)
	reads := []func(context.Context) error{
		func(ctx context.Context) error {
			return selectOne(ctx, q, &matchRow, qb.Select(qb.ModelColumns(matchTableModel{})...).
				From("matches").Where(qb.Eq("id", dataRow.MatchID)).Limit(1), "match")
		},
		func(ctx context.Context) error {
			return selectAll(ctx, q, &partRows, qb.Select("*").From("match_parts").
				Where(qb.Eq("match_data_id", matchDataID)).OrderBy("part_number", "start_time"), "match parts")
		},
		func(ctx context.Context) error {
			return selectAll(ctx, q, &eventRows, qb.Select("*").From("match_events").
				Where(qb.Eq("match_data_id", matchDataID)).OrderBy("event_time", "seq"), "match events")
		},
		func(ctx context.Context) error {
			return selectAll(ctx, q, &groupRows, qb.Select("*").From("player_groups").
				Where(qb.Eq("match_data_id", matchDataID)).OrderBy("team_id", "starting_type", "id"), "player groups")
		},
		func(ctx context.Context) error {
			return selectAll(ctx, q, &players, qb.Select("*").From("match_players").
				Where(qb.Eq("match_data_id", matchDataID)).OrderBy("team_id", "player_id"), "match players")
		},
	}

	if lock {
		for _, read := range reads {
			if err := read(ctx); err != nil {
				return match.State{}, err
			}
		}
	} else {
		p := pool.New().WithErrors().WithContext(ctx)
		for _, read := range reads {
			p.Go(read)
		}
		if err := p.Wait(); err != nil {
			return match.State{}, err
		}
	}

	st.Match = matchFromRow(matchRow)
	for _, row := range partRows {
		st.Parts = append(st.Parts, partFromRow(row))
	}
	for _, row := range eventRows {
		e, err := eventFromRow(row)
		if err != nil {
			return match.State{}, err
		}
		st.Events = append(st.Events, e)
	}
	event.Sort(st.Events)
	for _, row := range groupRows {
		st.Groups = append(st.Groups, groupFromRow(row))
	}
	for _, row := range players {
		st.Players = append(st.Players, roster.MatchPlayer{MatchDataID: row.MatchDataID, TeamID: row.TeamID, PlayerID: row.PlayerID})
	}
	return st, nil
}

func selectOne(ctx context.Context, q queryer, dest any, sel *qb.SelectBuilder, what string) error {
	query, args, err := sel.ToSQL()
	if err != nil {
		return fmt.Errorf("build select %s query: %w", what, err)
	}
	if err := getContext(ctx, q, dest, query, args...); err != nil {
		return fmt.Errorf("select %s: %w", what, err)
	}
	return nil
}

func selectAll(ctx context.Context, q queryer, dest any, sel *qb.SelectBuilder, what string) error {
	query, args, err := sel.ToSQL()
	if err != nil {
		return fmt.Errorf("build select %s query: %w", what, err)
	}
	if err := selectContext(ctx, q, dest, query, args...); err != nil {
		return fmt.Errorf("select %s: %w", what, err)
	}
	return nil
}

// pgTx writes through to the transaction and mirrors every write into state.
type pgTx struct {
	tx    *sqlx.Tx
	state *match.State
	hooks []func()
}

func (t *pgTx) State() *match.State {
	return t.state
}

func (t *pgTx) SaveData(ctx context.Context, data match.Data) error {
	if err := data.Validate(); err != nil {
		return err
	}
	query, args, err := qb.Update("match_data").
		Set("status", string(data.Status)).
		Set("home_score", data.HomeScore).
		Set("away_score", data.AwayScore).
		Set("parts", data.Parts).
		Set("current_part", data.CurrentPart).
		Set("part_length_seconds", data.PartLengthSeconds).
		Set("updated_at", data.UpdatedAt.UTC()).
		Where(qb.Eq("id", data.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update match data query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update match data id=%s: %w", data.ID, err)
	}
	t.state.Data = data
	return nil
}

func (t *pgTx) SavePart(ctx context.Context, part match.Part) error {
	query, args, err := qb.InsertModel("match_parts", partToRow(part), `ON CONFLICT (id)
DO UPDATE SET
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    active = EXCLUDED.active`)
	if err != nil {
		return fmt.Errorf("build upsert match part query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert match part id=%s: %w", part.ID, err)
	}
	t.state.PutPart(part)
	return nil
}

func (t *pgTx) SaveGroup(ctx context.Context, group playergroup.Group) error {
	if err := upsertGroup(ctx, t.tx, group); err != nil {
		return err
	}
	t.state.PutGroup(group.Clone())
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e event.Event) (event.Event, error) {
	if err := e.Validate(); err != nil {
		return event.Event{}, err
	}
	model, err := eventToInsertModel(e)
	if err != nil {
		return event.Event{}, err
	}
	e.Time = model.EventTime
	query, args, err := qb.InsertModel("match_events", model, "RETURNING seq")
	if err != nil {
		return event.Event{}, fmt.Errorf("build insert match event query: %w", err)
	}
	if err := t.tx.GetContext(ctx, &e.Seq, query, args...); err != nil {
		return event.Event{}, fmt.Errorf("insert match event kind=%s: %w", e.Kind, err)
	}
	t.state.PutEvent(e.Clone())
	return e, nil
}

func (t *pgTx) UpdateEvent(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	model, err := eventToInsertModel(e)
	if err != nil {
		return err
	}
	e.Time = model.EventTime
	query, args, err := qb.Update("match_events").
		Set("part_id", model.PartID).
		Set("kind", model.Kind).
		Set("event_time", model.EventTime).
		Set("payload", model.Payload).
		Where(qb.Eq("id", e.ID), qb.Eq("match_data_id", e.MatchDataID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update match event query: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update match event id=%s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", match.ErrEventNotFound, e.ID)
	}
	t.state.PutEvent(e.Clone())
	return nil
}

func (t *pgTx) DeleteEvent(ctx context.Context, eventID string) error {
	query, args, err := qb.DeleteFrom("match_events").
		Where(qb.Eq("id", eventID), qb.Eq("match_data_id", t.state.Data.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete match event query: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete match event id=%s: %w", eventID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", match.ErrEventNotFound, eventID)
	}
	t.state.RemoveEvent(eventID)
	return nil
}

func (t *pgTx) UpsertMatchPlayers(ctx context.Context, players []roster.MatchPlayer) error {
	if len(players) == 0 {
		return nil
	}
	ins := qb.InsertInto("match_players").Columns("match_data_id", "team_id", "player_id")
	for _, p := range players {
		ins = ins.Values(p.MatchDataID, p.TeamID, p.PlayerID)
	}
	query, args, err := ins.Suffix("ON CONFLICT DO NOTHING").ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert match players query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert match players: %w", err)
	}
	t.state.PutPlayers(players)
	return nil
}

func (t *pgTx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

func upsertGroup(ctx context.Context, q queryer, g playergroup.Group) error {
	query, args, err := qb.InsertModel("player_groups", groupToRow(g), `ON CONFLICT (id)
DO UPDATE SET
    current_type = EXCLUDED.current_type,
    player_ids = EXCLUDED.player_ids`)
	if err != nil {
		return fmt.Errorf("build upsert player group query: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert player group id=%s: %w", g.ID, err)
	}
	return nil
}

func matchFromRow(row matchTableModel) match.Match {
	return match.Match{
		ID:         row.ID,
		HomeTeamID: row.HomeTeamID,
		AwayTeamID: row.AwayTeamID,
		SeasonID:   row.SeasonID,
		StartTime:  row.StartTime.UTC(),
	}
}

func dataFromRow(row matchDataTableModel) match.Data {
	return match.Data{
		ID:                row.ID,
		MatchID:           row.MatchID,
		Status:            match.Status(row.Status),
		HomeScore:         row.HomeScore,
		AwayScore:         row.AwayScore,
		Parts:             row.Parts,
		CurrentPart:       row.CurrentPart,
		PartLengthSeconds: row.PartLengthSeconds,
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

func dataToRow(d match.Data) matchDataTableModel {
	return matchDataTableModel{
		ID:                d.ID,
		MatchID:           d.MatchID,
		Status:            string(d.Status),
		HomeScore:         d.HomeScore,
		AwayScore:         d.AwayScore,
		Parts:             d.Parts,
		CurrentPart:       d.CurrentPart,
		PartLengthSeconds: d.PartLengthSeconds,
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}

func partFromRow(row matchPartTableModel) match.Part {
	p := match.Part{
		ID:          row.ID,
		MatchDataID: row.MatchDataID,
		PartNumber:  row.PartNumber,
		StartTime:   row.StartTime.UTC(),
		Active:      row.Active,
	}
	if row.EndTime != nil {
		end := row.EndTime.UTC()
		p.EndTime = &end
	}
	return p
}

func partToRow(p match.Part) matchPartTableModel {
	row := matchPartTableModel{
		ID:          p.ID,
		MatchDataID: p.MatchDataID,
		PartNumber:  p.PartNumber,
		StartTime:   p.StartTime.UTC(),
		Active:      p.Active,
	}
	if p.EndTime != nil {
		end := p.EndTime.UTC()
		row.EndTime = &end
	}
	return row
}

func groupFromRow(row playerGroupTableModel) playergroup.Group {
	return playergroup.Group{
		ID:           row.ID,
		TeamID:       row.TeamID,
		MatchDataID:  row.MatchDataID,
		StartingType: playergroup.Type(row.StartingType),
		CurrentType:  playergroup.Type(row.CurrentType),
		PlayerIDs:    append([]string(nil), row.PlayerIDs...),
	}
}

func groupToRow(g playergroup.Group) playerGroupTableModel {
	ids := g.PlayerIDs
	if ids == nil {
		ids = []string{}
	}
	return playerGroupTableModel{
		ID:           g.ID,
		MatchDataID:  g.MatchDataID,
		TeamID:       g.TeamID,
		StartingType: string(g.StartingType),
		CurrentType:  string(g.CurrentType),
		PlayerIDs:    pq.StringArray(ids),
	}
}

func eventToInsertModel(e event.Event) (matchEventInsertModel, error) {
	payload, err := encodeEventPayload(e)
	if err != nil {
		return matchEventInsertModel{}, err
	}
	return matchEventInsertModel{
		ID:          e.ID,
		MatchDataID: e.MatchDataID,
		PartID:      optionalString(e.PartID),
		Kind:        string(e.Kind),
		EventTime:   e.Time.UTC().Truncate(time.Microsecond),
		Payload:     payload,
	}, nil
}
