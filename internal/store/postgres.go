package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("store: conflict")
	// ErrRevisionConflict reports that a row changed since it was read.
	ErrRevisionConflict = errors.New("store: revision conflict")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func joinRoles(roles []string) string {
	if len(roles) == 0 {
		return "viewer"
	}
	return strings.Join(roles, ",")
}

func splitRoles(raw string) []string {
	out := make([]string, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// =============================================================================
// Users
// =============================================================================

const userColumns = `id, display_name, email, password_hash, signing_pin_hash, roles, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	var roles string
	if err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.SigningPinHash, &roles, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Roles = splitRoles(roles)
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, strings.TrimSpace(email)))
}

// ListUsers returns every user ordered by display name. The directory is
// small (one board), so notification fan-out filters in memory.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, signing_pin_hash, roles)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.SigningPinHash, joinRoles(user.Roles))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSigningPinHash(ctx context.Context, userID, pinHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET signing_pin_hash=$2, updated_at=NOW() WHERE id=$1`, userID, pinHash)
	if err != nil {
		return fmt.Errorf("update signing pin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update signing pin rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =============================================================================
// Meetings and required signers
// =============================================================================

func (s *PostgresStore) InsertMeeting(ctx context.Context, meeting Meeting) error {
	status := meeting.Status
	if status == "" {
		status = MeetingScheduled
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, board_id, title, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
	`, meeting.ID, meeting.BoardID, meeting.Title, status, meeting.ScheduledAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMeeting(ctx context.Context, meetingID string) (Meeting, error) {
	var meeting Meeting
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, title, status, scheduled_at, created_at, updated_at
		FROM meetings
		WHERE id=$1
	`, meetingID).Scan(&meeting.ID, &meeting.BoardID, &meeting.Title, &meeting.Status, &meeting.ScheduledAt, &meeting.CreatedAt, &meeting.UpdatedAt)
	if err != nil {
		return Meeting{}, err
	}
	return meeting, nil
}

func (s *PostgresStore) UpdateMeetingStatus(ctx context.Context, meetingID, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE meetings SET status=$2, updated_at=NOW() WHERE id=$1`, meetingID, status)
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update meeting status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListRequiredSigners(ctx context.Context, meetingID string) ([]RequiredSigner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, name, user_id
		FROM meeting_signers
		WHERE meeting_id=$1
		ORDER BY position ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list required signers: %w", err)
	}
	defer rows.Close()

	items := make([]RequiredSigner, 0)
	for rows.Next() {
		var item RequiredSigner
		if err := rows.Scan(&item.Role, &item.Name, &item.UserID); err != nil {
			return nil, fmt.Errorf("scan required signer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate required signers: %w", err)
	}
	return items, nil
}

// ReplaceRequiredSigners swaps the whole signer list atomically.
func (s *PostgresStore) ReplaceRequiredSigners(ctx context.Context, meetingID string, signers []RequiredSigner) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meeting_signers WHERE meeting_id=$1`, meetingID); err != nil {
			return fmt.Errorf("clear required signers: %w", err)
		}
		for i, signer := range signers {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO meeting_signers (meeting_id, position, role, name, user_id)
				VALUES ($1, $2, $3, $4, $5)
			`, meetingID, i, signer.Role, signer.Name, signer.UserID)
			if isUniqueViolation(err) {
				return ErrConflict
			}
			if err != nil {
				return fmt.Errorf("insert required signer: %w", err)
			}
		}
		return nil
	})
}

// =============================================================================
// Minutes
// =============================================================================

const minutesColumns = `
	id, meeting_id, content, content_plain_text, word_count, estimated_read_time, status,
	created_by, created_at, submitted_by, submitted_at,
	approved_by, approved_at, approval_notes,
	revision_requested_by, revision_requested_at, revision_reason,
	published_by, published_at,
	version, revision, revision_requested_version,
	pdf_url, allow_comments, review_deadline, updated_at`

func scanMinutes(row rowScanner) (Minutes, error) {
	var m Minutes
	err := row.Scan(
		&m.ID,
		&m.MeetingID,
		&m.Content,
		&m.ContentPlainText,
		&m.WordCount,
		&m.EstimatedReadTime,
		&m.Status,
		&m.CreatedBy,
		&m.CreatedAt,
		&m.SubmittedBy,
		&m.SubmittedAt,
		&m.ApprovedBy,
		&m.ApprovedAt,
		&m.ApprovalNotes,
		&m.RevisionRequestedBy,
		&m.RevisionRequestedAt,
		&m.RevisionReason,
		&m.PublishedBy,
		&m.PublishedAt,
		&m.Version,
		&m.Revision,
		&m.RevisionRequestedVersion,
		&m.PDFURL,
		&m.AllowComments,
		&m.ReviewDeadline,
		&m.UpdatedAt,
	)
	if err != nil {
		return Minutes{}, err
	}
	return m, nil
}

// InsertMinutes stores a new minutes record together with its creation event.
// A second minutes for the same meeting yields ErrConflict.
func (s *PostgresStore) InsertMinutes(ctx context.Context, m Minutes, event MinutesEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO minutes (id, meeting_id, content, content_plain_text, word_count, estimated_read_time, status,
				created_by, created_at, version, revision, allow_comments, review_deadline, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $9)
		`, m.ID, m.MeetingID, m.Content, m.ContentPlainText, m.WordCount, m.EstimatedReadTime, m.Status,
			m.CreatedBy, m.CreatedAt, m.Version, m.Revision, m.AllowComments, m.ReviewDeadline)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert minutes: %w", err)
		}
		return insertEvent(ctx, tx, event)
	})
}

func (s *PostgresStore) GetMinutes(ctx context.Context, minutesID string) (Minutes, error) {
	return scanMinutes(s.db.QueryRowContext(ctx, `SELECT `+minutesColumns+` FROM minutes WHERE id=$1`, minutesID))
}

func (s *PostgresStore) ListMinutes(ctx context.Context, filter MinutesFilter) ([]Minutes, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+minutesColumns+`
		FROM minutes
		WHERE ($1='' OR status=$1)
		  AND ($2='' OR meeting_id=$2)
		ORDER BY updated_at DESC
		LIMIT $3
	`, filter.Status, filter.MeetingID, limit)
	if err != nil {
		return nil, fmt.Errorf("list minutes: %w", err)
	}
	defer rows.Close()

	items := make([]Minutes, 0)
	for rows.Next() {
		item, err := scanMinutes(rows)
		if err != nil {
			return nil, fmt.Errorf("scan minutes: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate minutes: %w", err)
	}
	return items, nil
}

// UpdateMinutes writes every mutable column of m when the stored revision
// still equals expectedRevision. The optional event is appended in the same
// transaction. A stale revision yields ErrRevisionConflict and writes
// nothing.
func (s *PostgresStore) UpdateMinutes(ctx context.Context, m Minutes, expectedRevision int, event *MinutesEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE minutes SET
				content=$3, content_plain_text=$4, word_count=$5, estimated_read_time=$6, status=$7,
				submitted_by=$8, submitted_at=$9,
				approved_by=$10, approved_at=$11, approval_notes=$12,
				revision_requested_by=$13, revision_requested_at=$14, revision_reason=$15,
				published_by=$16, published_at=$17,
				version=$18, revision=$19, revision_requested_version=$20,
				pdf_url=$21, allow_comments=$22, review_deadline=$23, updated_at=$24
			WHERE id=$1 AND revision=$2
		`, m.ID, expectedRevision,
			m.Content, m.ContentPlainText, m.WordCount, m.EstimatedReadTime, m.Status,
			m.SubmittedBy, m.SubmittedAt,
			m.ApprovedBy, m.ApprovedAt, m.ApprovalNotes,
			m.RevisionRequestedBy, m.RevisionRequestedAt, m.RevisionReason,
			m.PublishedBy, m.PublishedAt,
			m.Version, m.Revision, m.RevisionRequestedVersion,
			m.PDFURL, m.AllowComments, m.ReviewDeadline, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update minutes: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update minutes rows: %w", err)
		}
		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM minutes WHERE id=$1)`, m.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check minutes: %w", err)
			}
			if !exists {
				return sql.ErrNoRows
			}
			return ErrRevisionConflict
		}
		if event == nil {
			return nil
		}
		return insertEvent(ctx, tx, *event)
	})
}

// =============================================================================
// Comments
// =============================================================================

const commentColumns = `
	id, minutes_id, comment, comment_type, section_reference, highlighted_text,
	text_position_start, text_position_end, parent_comment_id,
	resolved, secretary_response, responded_at, created_by, created_by_name, created_at`

func scanComment(row rowScanner) (MinutesComment, error) {
	var c MinutesComment
	err := row.Scan(
		&c.ID,
		&c.MinutesID,
		&c.Comment,
		&c.CommentType,
		&c.SectionReference,
		&c.HighlightedText,
		&c.TextPositionStart,
		&c.TextPositionEnd,
		&c.ParentCommentID,
		&c.Resolved,
		&c.SecretaryResponse,
		&c.RespondedAt,
		&c.CreatedBy,
		&c.CreatedByName,
		&c.CreatedAt,
	)
	if err != nil {
		return MinutesComment{}, err
	}
	return c, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, c MinutesComment, event MinutesEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO minutes_comments (id, minutes_id, comment, comment_type, section_reference, highlighted_text,
				text_position_start, text_position_end, parent_comment_id, created_by, created_by_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, c.ID, c.MinutesID, c.Comment, c.CommentType, c.SectionReference, c.HighlightedText,
			c.TextPositionStart, c.TextPositionEnd, c.ParentCommentID, c.CreatedBy, c.CreatedByName, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return insertEvent(ctx, tx, event)
	})
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (MinutesComment, error) {
	return scanComment(s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM minutes_comments WHERE id=$1`, commentID))
}

func (s *PostgresStore) ListComments(ctx context.Context, minutesID string) ([]MinutesComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM minutes_comments
		WHERE minutes_id=$1
		ORDER BY created_at ASC, id ASC
	`, minutesID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]MinutesComment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// ResolveComment marks an unresolved comment resolved. It reports false when
// the comment was already resolved, so concurrent resolutions cannot both
// succeed.
func (s *PostgresStore) ResolveComment(ctx context.Context, commentID, response string, respondedAt time.Time, event MinutesEvent) (bool, error) {
	resolved := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE minutes_comments
			SET resolved=TRUE, secretary_response=$2, responded_at=$3
			WHERE id=$1 AND resolved=FALSE
		`, commentID, response, respondedAt)
		if err != nil {
			return fmt.Errorf("resolve comment: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("resolve comment rows: %w", err)
		}
		if affected == 0 {
			return nil
		}
		resolved = true
		return insertEvent(ctx, tx, event)
	})
	return resolved, err
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string, event MinutesEvent) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM minutes_comments WHERE id=$1`, commentID)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete comment rows: %w", err)
		}
		if affected == 0 {
			return nil
		}
		deleted = true
		return insertEvent(ctx, tx, event)
	})
	return deleted, err
}

// =============================================================================
// Signatures
// =============================================================================

const signatureColumns = `
	id, minutes_id, minutes_version, signer_role, signer_name, signer_user_id, signature_hash,
	signature_method, certificate_id, signed_at, verified, verification_date`

func scanSignature(row rowScanner) (MinutesSignature, error) {
	var sig MinutesSignature
	err := row.Scan(
		&sig.ID,
		&sig.MinutesID,
		&sig.MinutesVersion,
		&sig.SignerRole,
		&sig.SignerName,
		&sig.SignerUserID,
		&sig.SignatureHash,
		&sig.SignatureMethod,
		&sig.CertificateID,
		&sig.SignedAt,
		&sig.Verified,
		&sig.VerificationDate,
	)
	if err != nil {
		return MinutesSignature{}, err
	}
	return sig, nil
}

// InsertSignature stores a signature. A second signature for the same
// role/name pair yields ErrConflict.
func (s *PostgresStore) InsertSignature(ctx context.Context, sig MinutesSignature, event MinutesEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO minutes_signatures (id, minutes_id, minutes_version, signer_role, signer_name, signer_user_id,
				signature_hash, signature_method, certificate_id, signed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, sig.ID, sig.MinutesID, sig.MinutesVersion, sig.SignerRole, sig.SignerName, sig.SignerUserID,
			sig.SignatureHash, sig.SignatureMethod, sig.CertificateID, sig.SignedAt)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert signature: %w", err)
		}
		return insertEvent(ctx, tx, event)
	})
}

func (s *PostgresStore) GetSignature(ctx context.Context, signatureID string) (MinutesSignature, error) {
	return scanSignature(s.db.QueryRowContext(ctx, `SELECT `+signatureColumns+` FROM minutes_signatures WHERE id=$1`, signatureID))
}

func (s *PostgresStore) ListSignatures(ctx context.Context, minutesID string) ([]MinutesSignature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+signatureColumns+`
		FROM minutes_signatures
		WHERE minutes_id=$1
		ORDER BY signed_at ASC, id ASC
	`, minutesID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	items := make([]MinutesSignature, 0)
	for rows.Next() {
		item, err := scanSignature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return items, nil
}

// MarkSignatureVerified records a successful verification. Re-verifying
// refreshes the verification date.
func (s *PostgresStore) MarkSignatureVerified(ctx context.Context, signatureID string, verifiedAt time.Time, event MinutesEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE minutes_signatures SET verified=TRUE, verification_date=$2 WHERE id=$1
		`, signatureID, verifiedAt)
		if err != nil {
			return fmt.Errorf("verify signature: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("verify signature rows: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return insertEvent(ctx, tx, event)
	})
}

// =============================================================================
// Audit events
// =============================================================================

func insertEvent(ctx context.Context, tx execer, event MinutesEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO minutes_events (minutes_id, event, from_status, to_status, actor_id, actor_name, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, event.MinutesID, event.Event, event.FromStatus, event.ToStatus, event.ActorID, event.ActorName, string(encoded), createdAt)
	if err != nil {
		return fmt.Errorf("insert minutes event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMinutesEvents(ctx context.Context, minutesID string, limit int) ([]MinutesEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, minutes_id, event, from_status, to_status, actor_id, actor_name, payload, created_at
		FROM minutes_events
		WHERE minutes_id=$1
		ORDER BY id ASC
		LIMIT $2
	`, minutesID, limit)
	if err != nil {
		return nil, fmt.Errorf("list minutes events: %w", err)
	}
	defer rows.Close()

	items := make([]MinutesEvent, 0)
	for rows.Next() {
		var item MinutesEvent
		var payloadRaw []byte
		if err := rows.Scan(
			&item.ID,
			&item.MinutesID,
			&item.Event,
			&item.FromStatus,
			&item.ToStatus,
			&item.ActorID,
			&item.ActorName,
			&payloadRaw,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan minutes event: %w", err)
		}
		if len(payloadRaw) > 0 {
			if err := json.Unmarshal(payloadRaw, &item.Payload); err != nil {
				return nil, fmt.Errorf("decode minutes event %d payload: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate minutes events: %w", err)
	}
	return items, nil
}
