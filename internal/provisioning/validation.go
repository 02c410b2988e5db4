package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/util/naming"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents an input validation error or warning.
type ValidationError struct {
	Field    string // Flag or field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// Identifiers are the operator-supplied names of an entity.
type Identifiers struct {
	Kind         config.Kind
	Owner        string
	Name         string
	Email        string
	Tier         string
	Department   string
	ProjectID    string
	RequireEmail bool // create needs an address for the topic subscription
}

// ValidateIdentifiers checks naming constraints and enumerations.
func ValidateIdentifiers(ids Identifiers) []ValidationError {
	var errs []ValidationError

	if !ids.Kind.Valid() {
		errs = append(errs, ValidationError{
			Field:    "kind",
			Message:  fmt.Sprintf("unknown entity kind %q", ids.Kind),
			Severity: SeverityError,
		})
	}

	errs = append(errs, validateName("instance_owner", ids.Owner)...)
	errs = append(errs, validateName("instance_name", ids.Name)...)

	if ids.RequireEmail {
		switch {
		case ids.Email == "":
			errs = append(errs, ValidationError{
				Field:    "instance_owner_email",
				Message:  "owner email is required",
				Severity: SeverityError,
			})
		case !strings.Contains(ids.Email, "@"):
			errs = append(errs, ValidationError{
				Field:    "instance_owner_email",
				Message:  fmt.Sprintf("%q is not an email address", ids.Email),
				Severity: SeverityError,
			})
		}
	}

	if !config.IsTier(ids.Tier) {
		errs = append(errs, ValidationError{
			Field:    "prod_level",
			Message:  fmt.Sprintf("%q must be one of: %s", ids.Tier, strings.Join(config.Tiers, ", ")),
			Severity: SeverityError,
		})
	}

	department := ids.Department
	if department == "" {
		department = config.DefaultDepartment
	}
	if !config.IsDepartment(department) {
		errs = append(errs, ValidationError{
			Field:    "instance_owner_department",
			Message:  fmt.Sprintf("%q must be one of: %s", department, strings.Join(config.Departments, ", ")),
			Severity: SeverityError,
		})
	}

	if ids.RequireEmail && ids.ProjectID == "" {
		errs = append(errs, ValidationError{
			Field:    "project_id",
			Message:  "no project id given, the cost allocation tag will be empty",
			Severity: SeverityWarning,
		})
	}

	return errs
}

func validateName(field, value string) []ValidationError {
	if value == "" {
		return []ValidationError{{Field: field, Message: "must not be empty", Severity: SeverityError}}
	}

	var errs []ValidationError
	if strings.IndexFunc(value, unicode.IsUpper) >= 0 {
		errs = append(errs, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf("%q must not contain uppercase letters", value),
			Severity: SeverityError,
		})
	}
	if strings.ContainsAny(value, `/\`) {
		errs = append(errs, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf("%q must not contain a path separator", value),
			Severity: SeverityError,
		})
	}
	return errs
}

// ValidateResourceNames checks that every cloud name derived from e fits
// its AWS limit. The serial digest has a fixed width, so the names of any
// future serial have the lengths computed here.
func ValidateResourceNames(e config.Entity) []ValidationError {
	if e.Owner == "" || e.Name == "" {
		return nil
	}
	rid := registry.NewSerial(e.FullName(), time.Time{}).ResourceID()

	limits := []struct {
		what  string
		name  string
		limit int
	}{
		{"IAM role", naming.Role(e.Kind, rid), naming.MaxRoleLen},
		{"IAM policy", naming.Policy(e.Kind, rid), naming.MaxPolicyLen},
		{"instance profile", naming.InstanceProfile(e.Kind, rid), naming.MaxInstanceProfileLen},
		{"SNS topic", naming.Topic(e.Kind, rid), naming.MaxTopicLen},
		{"key pair", naming.KeyPair(rid, e.Region()), naming.MaxKeyPairLen},
	}

	var errs []ValidationError
	for _, l := range limits {
		if n := utf8.RuneCountInString(l.name); n > l.limit {
			errs = append(errs, ValidationError{
				Field: "instance_name",
				Message: fmt.Sprintf("%s name %q is %d characters, the limit is %d; shorten the name or owner by %d",
					l.what, l.name, n, l.limit, n-l.limit),
				Severity: SeverityError,
			})
		}
	}
	if e.Kind == config.KindCluster && !naming.BucketFits(rid) {
		errs = append(errs, ValidationError{
			Field: "instance_name",
			Message: fmt.Sprintf("S3 bucket name for %q would exceed %d characters and lose part of the serial",
				e.FullName(), naming.MaxBucketLen),
			Severity: SeverityError,
		})
	}
	return errs
}

// CheckValidation logs warnings and joins errors into one ErrInvalidInput.
func CheckValidation(obs Observer, results []ValidationError) error {
	var msgs []string
	for _, ve := range results {
		event := EventValidationWarning
		if ve.IsError() {
			event = EventValidationError
			msgs = append(msgs, ve.Error())
		}
		obs.Event(Event{
			Type:     event,
			Phase:    "validation",
			Message:  ve.Message,
			Resource: ve.Field,
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  %s", ErrInvalidInput, strings.Join(msgs, "\n  "))
}

var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-[0-9]+$`)

// RegionForZone strips the trailing zone letter: us-east-1a -> us-east-1.
func RegionForZone(az string) (string, error) {
	if len(az) < 2 {
		return "", fmt.Errorf("%w: %w: %q", ErrInvalidInput, awscloud.ErrInvalidZone, az)
	}
	last := az[len(az)-1]
	region := az[:len(az)-1]
	if last < 'a' || last > 'z' || !regionPattern.MatchString(region) {
		return "", fmt.Errorf("%w: %w: %q", ErrInvalidInput, awscloud.ErrInvalidZone, az)
	}
	return region, nil
}

// ValidateZone requires az to be listed as available in its region. Any
// lookup failure is reported as an invalid zone.
func ValidateZone(ctx context.Context, zones awscloud.ZoneChecker, az string) error {
	if _, err := RegionForZone(az); err != nil {
		return err
	}
	if err := zones.ZoneAvailable(ctx, az); err != nil {
		if errors.Is(err, awscloud.ErrInvalidZone) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return fmt.Errorf("%w: %w: %s", ErrInvalidInput, awscloud.ErrInvalidZone, az)
	}
	return nil
}

// CheckCreatePreconditions refuses to overwrite an existing vars file.
func CheckCreatePreconditions(paths config.Paths) error {
	exists, err := fileExists(paths.VarsFile())
	if err != nil {
		return err
	}
	if exists {
		return Precondition(
			fmt.Sprintf("record already exists: %s", paths.VarsFile()),
			fmt.Sprintf("Remove it to rebuild %s:\n\n$ rm %s", paths.Entity, paths.VarsFile()))
	}
	return nil
}

// CheckTeardownPreconditions requires both the serial record and the vars file.
func CheckTeardownPreconditions(paths config.Paths) error {
	for _, p := range []struct{ what, path string }{
		{"serial record", paths.SerialFile()},
		{"vars file", paths.VarsFile()},
	} {
		exists, err := fileExists(p.path)
		if err != nil {
			return err
		}
		if !exists {
			return Precondition(fmt.Sprintf("%s not found: %s", p.what, p.path),
				fmt.Sprintf("Check the identifiers and --prod_level (currently %s).", paths.Tier))
		}
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
}

// ValidationPhase implements the Phase interface for pre-flight validation.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	ctx.Observer.Printf("[Validation] Running pre-flight validation...")

	results := ValidateIdentifiers(Identifiers{
		Kind:         ctx.Entity.Kind,
		Owner:        ctx.Entity.Owner,
		Name:         ctx.Entity.Name,
		Email:        ctx.Request.Email,
		Tier:         ctx.Entity.Tier,
		Department:   ctx.Request.Department,
		ProjectID:    ctx.Request.ProjectID,
		RequireEmail: true,
	})
	results = append(results, ValidateResourceNames(ctx.Entity)...)
	if err := CheckValidation(ctx.Observer, results); err != nil {
		return err
	}

	if err := ValidateZone(ctx, ctx.Cloud, ctx.Entity.Zone); err != nil {
		return err
	}

	if err := CheckCreatePreconditions(ctx.Paths); err != nil {
		return err
	}

	tools := ctx.Tools(ctx, prerequisites.ForCreate(ctx.Settings.Tools, ctx.Entity.Kind))
	if err := tools.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPreconditionMissing, err)
	}
	for _, r := range tools.Results {
		if r.Found {
			ctx.State.ToolVersions[r.Tool.Name] = r.Version
		}
	}

	ctx.Observer.Printf("[Validation] Validation passed")
	return nil
}
