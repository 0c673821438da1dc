package featureflag

type Flag string

const (
	FlagDisableRegionState               Flag = "DISABLE_REGION_STATE"
	FlagDisableParticipantJoinBroadcast  Flag = "DISABLE_PARTICIPANT_JOIN_BROADCAST"
	FlagDisableParticipantLeaveBroadcast Flag = "DISABLE_PARTICIPANT_LEAVE_BROADCAST"
	FlagDisableVoxelAddBroadcast         Flag = "DISABLE_VOXEL_ADD_BROADCAST"
	FlagDisableVoxelRemoveBroadcast      Flag = "DISABLE_VOXEL_REMOVE_BROADCAST"
	FlagDisableNodeInspection            Flag = "DISABLE_NODE_INSPECTION"
)
