package repository

// Schema is the ClickHouse DDL applied by InitSchema on startup.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS candles (
        bucket DateTime64(3, 'UTC'),
        symbol LowCardinality(String),
        tf LowCardinality(String),
        open Float64,
        high Float64,
        low Float64,
        close Float64,
        vol Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, tf, bucket)`,
	`CREATE TABLE IF NOT EXISTS sentiment (
        ts DateTime64(3, 'UTC'),
        symbol LowCardinality(String),
        score Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, ts)`,
	`CREATE TABLE IF NOT EXISTS backtest_trades (
        run_id String,
        symbol LowCardinality(String),
        seq UInt32,
        side LowCardinality(String),
        level Float64,
        entry Float64,
        units Float64,
        stop_loss Float64,
        take_profit Float64,
        entry_time DateTime64(3, 'UTC'),
        entry_fee Float64,
        exit_time DateTime64(3, 'UTC'),
        exit_price Float64,
        exit_reason LowCardinality(String),
        gross_pnl Float64,
        fees Float64,
        pnl Float64
    ) ENGINE = MergeTree
    ORDER BY (run_id, seq)`,
}
