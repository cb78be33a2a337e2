package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS partners (
		id                CHAR(36)     NOT NULL PRIMARY KEY,
		display_name      VARCHAR(200) NOT NULL,
		email             VARCHAR(255) NOT NULL,
		password_hash     VARCHAR(255) NOT NULL,
		stripe_account_id VARCHAR(64)  NULL,
		hotel_slug        VARCHAR(100) NULL,
		created_at        DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_partners_email (email),
		UNIQUE KEY uq_partners_hotel_slug (hotel_slug)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS experiences (
		id               CHAR(36)     NOT NULL PRIMARY KEY,
		partner_id       CHAR(36)     NOT NULL,
		title            VARCHAR(200) NOT NULL,
		price_cents      BIGINT       NOT NULL,
		currency         CHAR(3)      NOT NULL DEFAULT 'eur',
		max_participants INT          NOT NULL DEFAULT 0,
		KEY ix_experiences_partner (partner_id),
		CONSTRAINT fk_experiences_partner FOREIGN KEY (partner_id) REFERENCES partners (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS hotel_experiences (
		hotel_id      CHAR(36) NOT NULL,
		experience_id CHAR(36) NOT NULL,
		position      INT      NOT NULL DEFAULT 0,
		PRIMARY KEY (hotel_id, experience_id),
		CONSTRAINT fk_he_hotel FOREIGN KEY (hotel_id) REFERENCES partners (id),
		CONSTRAINT fk_he_experience FOREIGN KEY (experience_id) REFERENCES experiences (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id                CHAR(36)     NOT NULL PRIMARY KEY,
		experience_id     CHAR(36)     NOT NULL,
		hotel_id          CHAR(36)     NOT NULL,
		guest_name        VARCHAR(200) NOT NULL,
		guest_email       VARCHAR(255) NOT NULL,
		guest_phone       VARCHAR(50)  NULL,
		participants      INT          NOT NULL,
		total_cents       BIGINT       NOT NULL,
		currency          CHAR(3)      NOT NULL,
		requested_date    VARCHAR(10)  NULL,
		requested_time    VARCHAR(5)   NULL,
		session_id        VARCHAR(64)  NULL,
		response_deadline DATETIME     NOT NULL,
		status            ENUM('pending','confirmed','declined','pending_payment','completed','cancelled') NOT NULL,
		payment_ref       VARCHAR(64)  NULL,
		created_at        DATETIME     NOT NULL,
		updated_at        DATETIME     NOT NULL,
		KEY ix_reservations_status_deadline (status, response_deadline),
		CONSTRAINT fk_reservations_experience FOREIGN KEY (experience_id) REFERENCES experiences (id),
		CONSTRAINT fk_reservations_hotel FOREIGN KEY (hotel_id) REFERENCES partners (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS settlements (
		reservation_id    CHAR(36)    NOT NULL PRIMARY KEY,
		status            ENUM('processing','succeeded','failed') NOT NULL,
		transfer_id       VARCHAR(64) NULL,
		supplier_cents    BIGINT      NOT NULL,
		distributor_cents BIGINT      NOT NULL,
		platform_cents    BIGINT      NOT NULL,
		failure_reason    VARCHAR(64) NULL,
		attempts          INT         NOT NULL DEFAULT 0,
		updated_at        DATETIME    NOT NULL,
		CONSTRAINT fk_settlements_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS hotel_payouts (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		hotel_id       CHAR(36)     NOT NULL,
		reservation_id CHAR(36)     NOT NULL,
		amount_cents   BIGINT       NOT NULL,
		currency       CHAR(3)      NOT NULL,
		status         ENUM('pending','paid') NOT NULL DEFAULT 'pending',
		payment_ref    VARCHAR(128) NULL,
		payment_method VARCHAR(64)  NULL,
		notes          TEXT         NULL,
		paid_at        DATETIME     NULL,
		created_at     DATETIME     NOT NULL,
		UNIQUE KEY uq_hotel_payouts_reservation (reservation_id),
		KEY ix_hotel_payouts_status (status, created_at),
		CONSTRAINT fk_hotel_payouts_hotel FOREIGN KEY (hotel_id) REFERENCES partners (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables the service needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database.Migrate: statement %d: %w", i+1, err)
		}
	}
	return nil
}
