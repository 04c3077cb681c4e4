// Package postgres implements the PostgreSQL persistence layer for Dorm Match Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CANDIDATES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create candidates and blocklists
-- Version: 001

-- Candidate questionnaires. Answers are stored as raw JSONB and
-- normalized into profiles at run time; the precomputed feature
-- vector is optional.
CREATE TABLE IF NOT EXISTS candidates (
    candidate_id UUID PRIMARY KEY,
    answers JSONB NOT NULL DEFAULT '{}'::jsonb,
    vector REAL[],
    institution_id VARCHAR(100),
    degree_level VARCHAR(30),
    programme_id VARCHAR(100),
    faculty VARCHAR(100),
    graduation_year INTEGER NOT NULL DEFAULT 0,
    city VARCHAR(100),
    open_to_cross_city BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_graduation_year CHECK (graduation_year = 0 OR graduation_year BETWEEN 1990 AND 2100)
);

-- Cohort filters query by institution, city and degree level
CREATE INDEX IF NOT EXISTS idx_candidates_institution ON candidates(institution_id);
CREATE INDEX IF NOT EXISTS idx_candidates_city ON candidates(city);
CREATE INDEX IF NOT EXISTS idx_candidates_degree_level ON candidates(degree_level);

-- One-directional blocks; matching treats them symmetrically
CREATE TABLE IF NOT EXISTS blocklists (
    owner_id UUID NOT NULL,
    blocked_id UUID NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (owner_id, blocked_id),
    CONSTRAINT no_self_block CHECK (owner_id != blocked_id)
);

CREATE INDEX IF NOT EXISTS idx_blocklists_owner ON blocklists(owner_id);
`

const migration001Down = `
DROP TABLE IF EXISTS blocklists;
DROP TABLE IF EXISTS candidates;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE MATCH RUNS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create match runs and records
-- Version: 002

-- Run summaries with funnel diagnostics. Every match record and
-- suggestion references a run.
CREATE TABLE IF NOT EXISTS match_runs (
    run_id UUID PRIMARY KEY,
    mode VARCHAR(20) NOT NULL,
    cohort TEXT NOT NULL DEFAULT '',
    record_count INTEGER NOT NULL DEFAULT 0,
    diagnostics JSONB NOT NULL DEFAULT '{}'::jsonb,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_mode CHECK (mode IN ('pairs', 'groups', 'suggestions'))
);

CREATE INDEX IF NOT EXISTS idx_match_runs_completed_at ON match_runs(completed_at DESC);

-- Bulk run output (pairs and groups)
CREATE TABLE IF NOT EXISTS match_records (
    id UUID PRIMARY KEY,
    run_id UUID NOT NULL REFERENCES match_runs(run_id) ON DELETE CASCADE,
    kind VARCHAR(10) NOT NULL,
    member_ids UUID[] NOT NULL,
    fit_score DOUBLE PRECISION NOT NULL,
    fit_index INTEGER NOT NULL,
    section_scores JSONB NOT NULL DEFAULT '{}'::jsonb,
    reasons TEXT[] NOT NULL DEFAULT '{}',
    locked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_kind CHECK (kind IN ('pair', 'group')),
    CONSTRAINT valid_fit_score CHECK (fit_score >= 0 AND fit_score <= 1),
    CONSTRAINT valid_fit_index CHECK (fit_index >= 0 AND fit_index <= 100),
    CONSTRAINT enough_members CHECK (array_length(member_ids, 1) >= 2)
);

CREATE INDEX IF NOT EXISTS idx_match_records_run_id ON match_records(run_id);
CREATE INDEX IF NOT EXISTS idx_match_records_members ON match_records USING GIN(member_ids);
`

const migration002Down = `
DROP TABLE IF EXISTS match_records;
DROP TABLE IF EXISTS match_runs;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE SUGGESTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create match suggestions
-- Version: 003

CREATE TABLE IF NOT EXISTS match_suggestions (
    id UUID PRIMARY KEY,
    run_id UUID NOT NULL REFERENCES match_runs(run_id) ON DELETE CASCADE,
    kind VARCHAR(10) NOT NULL,
    member_ids UUID[] NOT NULL,
    fit_index INTEGER NOT NULL,
    section_scores JSONB NOT NULL DEFAULT '{}'::jsonb,
    reasons TEXT[] NOT NULL DEFAULT '{}',
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    accepted_by UUID[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_kind CHECK (kind IN ('pair', 'group')),
    CONSTRAINT valid_status CHECK (status IN ('pending', 'accepted', 'declined', 'expired', 'confirmed')),
    CONSTRAINT valid_fit_index CHECK (fit_index >= 0 AND fit_index <= 100),
    CONSTRAINT enough_members CHECK (array_length(member_ids, 1) >= 2)
);

CREATE INDEX IF NOT EXISTS idx_suggestions_members ON match_suggestions USING GIN(member_ids);
CREATE INDEX IF NOT EXISTS idx_suggestions_run_id ON match_suggestions(run_id);

-- Expiry sweep scans open suggestions past their deadline
CREATE INDEX IF NOT EXISTS idx_suggestions_open_expiry ON match_suggestions(expires_at)
    WHERE status IN ('pending', 'accepted');
`

const migration003Down = `
DROP TABLE IF EXISTS match_suggestions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE EXPERIMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create experiments and assignments
-- Version: 004

-- Experiment definitions; variants carry traffic split and weight
-- overrides as JSONB
CREATE TABLE IF NOT EXISTS experiments (
    id VARCHAR(100) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    method VARCHAR(10) NOT NULL DEFAULT 'hash',
    variants JSONB NOT NULL DEFAULT '[]'::jsonb,
    active BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_method CHECK (method IN ('hash', 'random'))
);

CREATE INDEX IF NOT EXISTS idx_experiments_active ON experiments(active) WHERE active;

-- Sticky variant assignments: a candidate keeps the same variant
-- across runs
CREATE TABLE IF NOT EXISTS experiment_assignments (
    candidate_id UUID NOT NULL,
    experiment_id VARCHAR(100) NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
    variant VARCHAR(100) NOT NULL,
    method VARCHAR(10) NOT NULL,
    assigned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (candidate_id, experiment_id)
);

CREATE INDEX IF NOT EXISTS idx_assignments_experiment ON experiment_assignments(experiment_id);

-- Per-variant assignment counters for traffic split monitoring
CREATE TABLE IF NOT EXISTS experiment_variant_usage (
    experiment_id VARCHAR(100) NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
    variant VARCHAR(100) NOT NULL,
    assigned_count BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (experiment_id, variant)
);
`

const migration004Down = `
DROP TABLE IF EXISTS experiment_variant_usage;
DROP TABLE IF EXISTS experiment_assignments;
DROP TABLE IF EXISTS experiments;
`
