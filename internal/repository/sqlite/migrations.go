package sqlite

type migration struct {
	version int
	sql     string
}

// migrations must be sequential starting from 1
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	organization_id        TEXT NOT NULL,
	title                  TEXT NOT NULL,
	message                TEXT NOT NULL,
	short_description      TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT '',
	notification_type      TEXT NOT NULL,
	priority               TEXT NOT NULL,
	project_id             TEXT NOT NULL DEFAULT '',
	task_id                TEXT NOT NULL DEFAULT '',
	context_card_id        TEXT NOT NULL DEFAULT '',
	decision_log_id        TEXT NOT NULL DEFAULT '',
	handoff_summary_id     TEXT NOT NULL DEFAULT '',
	relevance_score        REAL NOT NULL DEFAULT 0.5 CHECK(relevance_score BETWEEN 0 AND 1),
	context_data           TEXT NOT NULL DEFAULT '{}',
	action_required        INTEGER NOT NULL DEFAULT 0,
	auto_generated         INTEGER NOT NULL DEFAULT 0,
	delivery_channels      TEXT NOT NULL DEFAULT '[]',
	scheduled_for          INTEGER,
	timezone_aware         INTEGER NOT NULL DEFAULT 1,
	work_hours_only        INTEGER NOT NULL DEFAULT 0,
	delivery_attempts      INTEGER NOT NULL DEFAULT 0,
	delivered_channels     TEXT NOT NULL DEFAULT '[]',
	failed_channels        TEXT NOT NULL DEFAULT '[]',
	last_delivery_attempt  INTEGER,
	is_read                INTEGER NOT NULL DEFAULT 0,
	read_at                INTEGER,
	is_dismissed           INTEGER NOT NULL DEFAULT 0,
	dismissed_at           INTEGER,
	action_taken           INTEGER NOT NULL DEFAULT 0,
	action_taken_at        INTEGER,
	thread_id              TEXT NOT NULL DEFAULT '',
	parent_notification_id TEXT NOT NULL DEFAULT '',
	source                 TEXT NOT NULL DEFAULT '',
	tags                   TEXT NOT NULL DEFAULT '[]',
	expires_at             INTEGER,
	created_at             INTEGER NOT NULL,
	updated_at             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_owner_created
	ON notifications(organization_id, user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_due
	ON notifications(scheduled_for, delivery_attempts);

CREATE TABLE IF NOT EXISTS notification_preferences (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	organization_id        TEXT NOT NULL,
	enabled                INTEGER NOT NULL DEFAULT 1,
	focus_mode_enabled     INTEGER NOT NULL DEFAULT 0,
	focus_mode_start_time  TEXT NOT NULL DEFAULT '',
	focus_mode_end_time    TEXT NOT NULL DEFAULT '',
	focus_mode_days        TEXT NOT NULL DEFAULT '[]',
	work_start_time        TEXT NOT NULL,
	work_end_time          TEXT NOT NULL,
	work_days              TEXT NOT NULL DEFAULT '[]',
	timezone               TEXT NOT NULL DEFAULT 'UTC',
	urgent_only_mode       INTEGER NOT NULL DEFAULT 0,
	minimum_priority       TEXT NOT NULL DEFAULT 'low',
	daily_digest_enabled   INTEGER NOT NULL DEFAULT 1,
	daily_digest_time      TEXT NOT NULL DEFAULT '08:00',
	weekly_digest_enabled  INTEGER NOT NULL DEFAULT 0,
	weekly_digest_day      TEXT NOT NULL DEFAULT 'monday',
	weekly_digest_time     TEXT NOT NULL DEFAULT '08:00',
	ai_filtering_enabled   INTEGER NOT NULL DEFAULT 1,
	relevance_threshold    REAL NOT NULL DEFAULT 0.3,
	context_aware_grouping INTEGER NOT NULL DEFAULT 1,
	created_at             INTEGER NOT NULL,
	updated_at             INTEGER NOT NULL,
	UNIQUE(organization_id, user_id)
);

CREATE TABLE IF NOT EXISTS focus_blocks (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	start_time      INTEGER NOT NULL,
	end_time        INTEGER NOT NULL,
	timezone        TEXT NOT NULL DEFAULT 'UTC',
	reason          TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	CHECK(end_time > start_time)
);

CREATE INDEX IF NOT EXISTS idx_focus_blocks_owner_end
	ON focus_blocks(organization_id, user_id, end_time);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notification_analytics (
	id                 TEXT PRIMARY KEY,
	notification_id    TEXT NOT NULL,
	user_id            TEXT NOT NULL,
	organization_id    TEXT NOT NULL,
	opened_at          INTEGER,
	time_to_open       INTEGER,
	relevance_feedback REAL,
	user_rating        INTEGER CHECK(user_rating IS NULL OR user_rating BETWEEN 1 AND 5),
	marked_as_spam     INTEGER NOT NULL DEFAULT 0,
	channel_used       TEXT NOT NULL DEFAULT '',
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL,
	UNIQUE(notification_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_analytics_owner_created
	ON notification_analytics(organization_id, user_id, created_at);

CREATE TABLE IF NOT EXISTS organizations (
	id        TEXT PRIMARY KEY,
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS users (
	id              TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (organization_id, id)
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
