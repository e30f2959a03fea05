package storage

import (
	"context"
	"database/sql"

	"taskuno-backend/internal/models"
)

func (s *Storage) CreateProductOwner(ctx context.Context, po *models.ProductOwner) error {
	query := `
		INSERT INTO product_owner (email, first_name, last_name, password, organization_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		po.Email, po.FirstName, po.LastName, po.PasswordHash, po.OrganizationID,
	).Scan(&po.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Storage) CreateDeveloper(ctx context.Context, dev *models.Developer) error {
	query := `
		INSERT INTO developer (email, first_name, last_name, password, owner_id, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		dev.Email, dev.FirstName, dev.LastName, dev.PasswordHash, dev.OwnerID, dev.OrganizationID,
	).Scan(&dev.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

const productOwnerColumns = `id, username, email, first_name, last_name, password, organization_id`

func (s *Storage) GetProductOwner(ctx context.Context, id int64) (*models.ProductOwner, error) {
	var po models.ProductOwner
	query := `SELECT ` + productOwnerColumns + ` FROM product_owner WHERE id = $1`
	if err := s.db.GetContext(ctx, &po, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &po, nil
}

func (s *Storage) GetProductOwnerByEmail(ctx context.Context, email string) (*models.ProductOwner, error) {
	var po models.ProductOwner
	query := `SELECT ` + productOwnerColumns + ` FROM product_owner WHERE email = $1 ORDER BY id LIMIT 1`
	if err := s.db.GetContext(ctx, &po, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &po, nil
}

func (s *Storage) FindProductOwner(ctx context.Context, email string, orgID int64) (*models.ProductOwner, error) {
	var po models.ProductOwner
	query := `SELECT ` + productOwnerColumns + ` FROM product_owner WHERE email = $1 AND organization_id = $2`
	if err := s.db.GetContext(ctx, &po, query, email, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &po, nil
}

const developerColumns = `id, username, email, first_name, last_name, password, owner_id, organization_id`

func (s *Storage) GetDeveloper(ctx context.Context, id int64) (*models.Developer, error) {
	var dev models.Developer
	query := `SELECT ` + developerColumns + ` FROM developer WHERE id = $1`
	if err := s.db.GetContext(ctx, &dev, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &dev, nil
}

func (s *Storage) GetDeveloperByEmail(ctx context.Context, email string) (*models.Developer, error) {
	var dev models.Developer
	query := `SELECT ` + developerColumns + ` FROM developer WHERE email = $1 ORDER BY id LIMIT 1`
	if err := s.db.GetContext(ctx, &dev, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &dev, nil
}

func (s *Storage) FindDeveloper(ctx context.Context, email string, orgID int64) (*models.Developer, error) {
	var dev models.Developer
	query := `SELECT ` + developerColumns + ` FROM developer WHERE email = $1 AND organization_id = $2`
	if err := s.db.GetContext(ctx, &dev, query, email, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &dev, nil
}

// EmailExistsInOrganization reports whether the email is taken by either a
// product owner or a developer within the organization.
func (s *Storage) EmailExistsInOrganization(ctx context.Context, email string, orgID int64) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM product_owner WHERE email = $1 AND organization_id = $2
			UNION
			SELECT 1 FROM developer WHERE email = $1 AND organization_id = $2
		)
	`
	err := s.db.QueryRowContext(ctx, query, email, orgID).Scan(&exists)
	return exists, err
}

func (s *Storage) ListProductOwners(ctx context.Context, orgID int64) ([]models.UserSummary, error) {
	var owners []models.UserSummary
	query := `
		SELECT id, email, first_name, last_name
		FROM product_owner
		WHERE organization_id = $1
		ORDER BY id
	`
	err := s.db.SelectContext(ctx, &owners, query, orgID)
	return owners, err
}

func (s *Storage) ListDevelopers(ctx context.Context, orgID int64) ([]models.UserSummary, error) {
	var devs []models.UserSummary
	query := `
		SELECT id, email, first_name, last_name
		FROM developer
		WHERE organization_id = $1
		ORDER BY id
	`
	err := s.db.SelectContext(ctx, &devs, query, orgID)
	return devs, err
}

// ListDevelopersByOwner returns the developers invited by the given product owner.
func (s *Storage) ListDevelopersByOwner(ctx context.Context, ownerID int64) ([]models.UserSummary, error) {
	var devs []models.UserSummary
	query := `
		SELECT id, email, first_name, last_name
		FROM developer
		WHERE owner_id = $1
		ORDER BY id
	`
	err := s.db.SelectContext(ctx, &devs, query, ownerID)
	return devs, err
}

// ListUnassignedDevelopers returns developers in the organization without an inviter.
func (s *Storage) ListUnassignedDevelopers(ctx context.Context, orgID int64) ([]models.UserSummary, error) {
	var devs []models.UserSummary
	query := `
		SELECT id, email, first_name, last_name
		FROM developer
		WHERE organization_id = $1 AND owner_id IS NULL
		ORDER BY id
	`
	err := s.db.SelectContext(ctx, &devs, query, orgID)
	return devs, err
}

func (s *Storage) UpdateProductOwnerProfile(ctx context.Context, id int64, firstName, lastName, passwordHash string) error {
	query := `
		UPDATE product_owner
		SET first_name = COALESCE($1, first_name),
		    last_name = COALESCE($2, last_name),
		    password = COALESCE($3, password)
		WHERE id = $4
	`
	res, err := s.db.ExecContext(ctx, query, nullIfEmpty(firstName), nullIfEmpty(lastName), nullIfEmpty(passwordHash), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Storage) UpdateDeveloperProfile(ctx context.Context, id int64, firstName, lastName, passwordHash string) error {
	query := `
		UPDATE developer
		SET first_name = COALESCE($1, first_name),
		    last_name = COALESCE($2, last_name),
		    password = COALESCE($3, password)
		WHERE id = $4
	`
	res, err := s.db.ExecContext(ctx, query, nullIfEmpty(firstName), nullIfEmpty(lastName), nullIfEmpty(passwordHash), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
