package domain

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	TierFree    = "Free"
	TierPremium = "Premium"
)

const (
	StatusNormal     = "Normal"
	StatusInfluencer = "Influencer"
)

// Assignment states. completed and expired are terminal.
const (
	TaskStateNotStarted = "not_started"
	TaskStateInProgress = "in_progress"
	TaskStateSubmitted  = "submitted"
	TaskStateApproved   = "approved"
	TaskStateRejected   = "rejected"
	TaskStateCompleted  = "completed"
	TaskStateExpired    = "expired"
)

const (
	VerificationAutomatic     = "automatic"
	VerificationManualReview  = "manual-review"
	VerificationMediaRequired = "media-required"
)

const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// Outcome of the automatic verification attempt made on submit.
const (
	VerifyOutcomeManual        = "manual"
	VerifyOutcomeApproved      = "approved"
	VerifyOutcomeNotApproved   = "not_approved"
	VerifyOutcomeUnavailable   = "unavailable"
	VerifyOutcomeCreditPending = "credit_pending" // approved, credit left to recovery
)

const (
	RedemptionPending   = "pending"
	RedemptionFulfilled = "fulfilled"
	RedemptionCancelled = "cancelled"
)

// Ledger entry types.
const (
	LedgerTaskCompletion   = "TASK_COMPLETION"
	LedgerReferralBonus    = "REFERRAL_BONUS"
	LedgerReferralWelcome  = "REFERRAL_WELCOME"
	LedgerRedemption       = "REDEMPTION"
	LedgerRedemptionCancel = "REDEMPTION_CANCEL"
	LedgerAdminAdjustment  = "ADMIN_ADJUSTMENT"
)

const (
	ServiceSpotify = "spotify"
)

// System setting keys (admin-configurable).
const (
	SettingReferralBonus        = "referral_bonus_points"
	SettingReferredWelcomeBonus = "referred_welcome_points"
)

const ReviewerSystem = "system"

// Notification types.
const (
	NotifTaskCompleted       = "TASK_COMPLETED"
	NotifSubmissionRejected  = "SUBMISSION_REJECTED"
	NotifReferralCredited    = "REFERRAL_CREDITED"
	NotifReferralWelcome     = "REFERRAL_WELCOME"
	NotifRedemptionCreated   = "REDEMPTION_CREATED"
	NotifRedemptionFulfilled = "REDEMPTION_FULFILLED"
	NotifRedemptionCancelled = "REDEMPTION_CANCELLED"
	NotifPointsAdjusted      = "POINTS_ADJUSTED"
)
