package profile

import "strings"

// Builtin compiles the catalogue embedded in this package. It covers the
// messages written by common activity recorders; everything else decodes
// as undocumented.
func Builtin() (*Profile, error) {
	return Build(tableRows(builtinTypes), tableRows(builtinMessages))
}

// tableRows splits a '|' separated table into spreadsheet rows.
func tableRows(table string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(table, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "|"))
	}
	return rows
}

// Type Name|Base Type|Value Name|Value
const builtinTypes = `
Type Name|Base Type|Value Name|Value
file|enum
||device|1
||settings|2
||sport|3
||activity|4
||workout|5
||course|6
||schedules|7
||weight|9
||totals|10
||goals|11
||blood_pressure|14
||monitoring_a|15
||activity_summary|20
||monitoring_daily|28
||monitoring_b|32
||segment|34
||segment_list|35
mesg_num|uint16
||file_id|0
||capabilities|1
||device_settings|2
||user_profile|3
||hrm_profile|4
||sdm_profile|5
||bike_profile|6
||zones_target|7
||hr_zone|8
||power_zone|9
||met_zone|10
||sport|12
||goal|15
||session|18
||lap|19
||record|20
||event|21
||device_info|23
||workout|26
||workout_step|27
||schedule|28
||weight_scale|30
||course|31
||course_point|32
||totals|33
||activity|34
||software|35
||file_capabilities|37
||mesg_capabilities|38
||field_capabilities|39
||file_creator|49
||blood_pressure|51
||speed_zone|53
||monitoring|55
||training_file|72
||hrv|78
||length|101
||monitoring_info|103
||pad|105
||slave_device|106
||cadence_zone|131
||segment_lap|142
||field_description|206
||developer_data_id|207
date_time|uint32
||min|0x10000000
local_date_time|uint32
||min|0x10000000
message_index|uint16
||selected|0x8000
||reserved|0x7000
||mask|0x0FFF
device_index|uint8
||creator|0
bool|enum
manufacturer|uint16
||garmin|1
||zephyr|3
||dayton|4
||idt|5
||srm|6
||quarq|7
||ibike|8
||saris|9
||dynastream_oem|13
||dynastream|15
||timex|16
||suunto|23
||wahoo_fitness|32
||stages_cycling|69
||development|255
||zwift|260
||strava|265
garmin_product|uint16
||hrm1|1
||edge500|1036
||edge800|1169
||edge510|1561
||edge810|1567
||edge1000|1836
||edge520|2067
||sdm4|10007
||training_center|20119
||connect|65534
sport|enum
||generic|0
||running|1
||cycling|2
||transition|3
||fitness_equipment|4
||swimming|5
||basketball|6
||soccer|7
||tennis|8
||american_football|9
||training|10
||walking|11
||cross_country_skiing|12
||alpine_skiing|13
||snowboarding|14
||rowing|15
||mountaineering|16
||hiking|17
||multisport|18
||paddling|19
||all|254
sub_sport|enum
||generic|0
||treadmill|1
||street|2
||trail|3
||track|4
||spin|5
||indoor_cycling|6
||road|7
||mountain|8
||downhill|9
||recumbent|10
||cyclocross|11
||hand_cycling|12
||track_cycling|13
||indoor_rowing|14
||elliptical|15
||stair_climbing|16
||lap_swimming|17
||open_water|18
||virtual_activity|58
||all|254
event|enum
||timer|0
||workout|3
||workout_step|4
||power_down|5
||power_up|6
||off_course|7
||session|8
||lap|9
||course_point|10
||battery|11
||virtual_partner_pace|12
||hr_high_alert|13
||hr_low_alert|14
||speed_high_alert|15
||speed_low_alert|16
||cad_high_alert|17
||cad_low_alert|18
||power_high_alert|19
||power_low_alert|20
||recovery_hr|21
||battery_low|22
||time_duration_alert|23
||distance_duration_alert|24
||calorie_duration_alert|25
||activity|26
||fitness_equipment|27
||length|28
||user_marker|32
||sport_point|33
||calibration|36
||front_gear_change|42
||rear_gear_change|43
||rider_position_change|44
||elev_high_alert|45
||elev_low_alert|46
||comm_timeout|47
event_type|enum
||start|0
||stop|1
||consecutive_depreciated|2
||marker|3
||stop_all|4
||begin_depreciated|5
||end_depreciated|6
||end_all_depreciated|7
||stop_disable|8
||stop_disable_all|9
timer_trigger|enum
||manual|0
||auto|1
||fitness_equipment|2
activity|enum
||manual|0
||auto_multi_sport|1
battery_status|uint8
||new|1
||good|2
||ok|3
||low|4
||critical|5
||charging|6
||unknown|7
lap_trigger|enum
||manual|0
||time|1
||distance|2
||position_start|3
||position_lap|4
||position_waypoint|5
||position_marked|6
||session_end|7
||fitness_equipment|8
session_trigger|enum
||activity_end|0
||manual|1
||auto_multi_sport|2
||fitness_equipment|3
left_right_balance|uint8
||mask|0x7F
||right|0x80
fit_base_type|uint8
||enum|0
||sint8|1
||uint8|2
||sint16|131
||uint16|132
||sint32|133
||uint32|134
||string|7
||float32|136
||float64|137
||uint8z|10
||uint16z|139
||uint32z|140
||byte|13
||sint64|142
||uint64|143
||uint64z|144
fit_base_unit|uint16
||other|0
||kilogram|1
||pound|2
`

// Message Name|Field Def #|Field Name|Field Type|Array|Components|Scale|Offset|Units|Bits|Accumulate|Ref Field Name|Ref Field Value
const builtinMessages = `
Message Name|Field Def #|Field Name|Field Type|Array|Components|Scale|Offset|Units|Bits|Accumulate|Ref Field Name|Ref Field Value
COMMON MESSAGES
file_id
|0|type|file
|1|manufacturer|manufacturer
|2|product|uint16
||garmin_product|garmin_product||||||||manufacturer,manufacturer,manufacturer|garmin,dynastream,dynastream_oem
|3|serial_number|uint32z
|4|time_created|date_time
|5|number|uint16
|8|product_name|string
file_creator
|0|software_version|uint16
|1|hardware_version|uint8
software
|254|message_index|message_index
|3|version|uint16|||100
|5|part_number|string
ACTIVITY FILE MESSAGES
activity
|253|timestamp|date_time
|0|total_timer_time|uint32|||1000||s
|1|num_sessions|uint16
|2|type|activity
|3|event|event
|4|event_type|event_type
|5|local_timestamp|local_date_time
|6|event_group|uint8
session
|254|message_index|message_index
|253|timestamp|date_time|||||s
|0|event|event
|1|event_type|event_type
|2|start_time|date_time
|3|start_position_lat|sint32|||||semicircles
|4|start_position_long|sint32|||||semicircles
|5|sport|sport
|6|sub_sport|sub_sport
|7|total_elapsed_time|uint32|||1000||s
|8|total_timer_time|uint32|||1000||s
|9|total_distance|uint32|||100||m
|10|total_cycles|uint32|||||cycles
|11|total_calories|uint16|||||kcal
|14|avg_speed|uint16||enhanced_avg_speed|1000||m/s|16
|15|max_speed|uint16||enhanced_max_speed|1000||m/s|16
|16|avg_heart_rate|uint8|||||bpm
|17|max_heart_rate|uint8|||||bpm
|18|avg_cadence|uint8|||||rpm
|19|max_cadence|uint8|||||rpm
|20|avg_power|uint16|||||watts
|21|max_power|uint16|||||watts
|22|total_ascent|uint16|||||m
|23|total_descent|uint16|||||m
|25|first_lap_index|uint16
|26|num_laps|uint16
|28|trigger|session_trigger
|124|enhanced_avg_speed|uint32|||1000||m/s
|125|enhanced_max_speed|uint32|||1000||m/s
lap
|254|message_index|message_index
|253|timestamp|date_time|||||s
|0|event|event
|1|event_type|event_type
|2|start_time|date_time
|3|start_position_lat|sint32|||||semicircles
|4|start_position_long|sint32|||||semicircles
|5|end_position_lat|sint32|||||semicircles
|6|end_position_long|sint32|||||semicircles
|7|total_elapsed_time|uint32|||1000||s
|8|total_timer_time|uint32|||1000||s
|9|total_distance|uint32|||100||m
|10|total_cycles|uint32|||||cycles
|11|total_calories|uint16|||||kcal
|13|avg_speed|uint16||enhanced_avg_speed|1000||m/s|16
|14|max_speed|uint16||enhanced_max_speed|1000||m/s|16
|15|avg_heart_rate|uint8|||||bpm
|16|max_heart_rate|uint8|||||bpm
|17|avg_cadence|uint8|||||rpm
|18|max_cadence|uint8|||||rpm
|19|avg_power|uint16|||||watts
|20|max_power|uint16|||||watts
|21|total_ascent|uint16|||||m
|22|total_descent|uint16|||||m
|24|lap_trigger|lap_trigger
|25|sport|sport
|110|enhanced_avg_speed|uint32|||1000||m/s
|111|enhanced_max_speed|uint32|||1000||m/s
record
|253|timestamp|date_time|||||s
|0|position_lat|sint32|||||semicircles
|1|position_long|sint32|||||semicircles
|2|altitude|uint16||enhanced_altitude|5|500|m|16
|3|heart_rate|uint8|||||bpm
|4|cadence|uint8|||||rpm
|5|distance|uint32|||100||m
|6|speed|uint16||enhanced_speed|1000||m/s|16
|7|power|uint16|||||watts
|8|compressed_speed_distance|byte|[3]|speed,distance|100,16||m/s,m|12,12|0,1
|9|grade|sint16|||100||%
|10|resistance|uint8
|11|time_from_course|sint32|||1000||s
|12|cycle_length|uint8|||100||m
|13|temperature|sint8|||||C
|17|speed_1s|uint8|[N]||16||m/s
|18|cycles|uint8||total_cycles|||cycles|8|1
|19|total_cycles|uint32|||||cycles
|28|compressed_accumulated_power|uint16||accumulated_power|||watts|16|1
|29|accumulated_power|uint32|||||watts
|30|left_right_balance|left_right_balance
|31|gps_accuracy|uint8|||||m
|32|vertical_speed|sint16|||1000||m/s
|33|calories|uint16|||||kcal
|39|vertical_oscillation|uint16|||10||mm
|40|stance_time_percent|uint16|||100||percent
|41|stance_time|uint16|||10||ms
|53|fractional_cadence|uint8|||128||rpm
|73|enhanced_speed|uint32|||1000||m/s
|78|enhanced_altitude|uint32|||5|500|m
event
|253|timestamp|date_time|||||s
|0|event|event
|1|event_type|event_type
|2|data16|uint16||data||||16
|3|data|uint32
||timer_trigger|timer_trigger||||||||event|timer
||course_point_index|message_index||||||||event|course_point
||battery_level|uint16|||1000||V|||event|battery
||virtual_partner_speed|uint16|||1000||m/s|||event|virtual_partner_pace
||hr_high_alert|uint8|||||bpm|||event|hr_high_alert
||hr_low_alert|uint8|||||bpm|||event|hr_low_alert
||speed_high_alert|uint32|||1000||m/s|||event|speed_high_alert
||speed_low_alert|uint32|||1000||m/s|||event|speed_low_alert
||cad_high_alert|uint16|||||rpm|||event|cad_high_alert
||cad_low_alert|uint16|||||rpm|||event|cad_low_alert
||power_high_alert|uint16|||||watts|||event|power_high_alert
||power_low_alert|uint16|||||watts|||event|power_low_alert
||time_duration_alert|uint32|||1000||s|||event|time_duration_alert
||distance_duration_alert|uint32|||100||m|||event|distance_duration_alert
||calorie_duration_alert|uint32|||||calories|||event|calorie_duration_alert
||sport_point|uint32||score,opponent_score|1,1|||16,16||event|sport_point
||gear_change_data|uint32||rear_gear_num,rear_gear,front_gear_num,front_gear|1,1,1,1|||8,8,8,8||event,event|rear_gear_change,front_gear_change
|4|event_group|uint8
|7|score|uint16
|8|opponent_score|uint16
|9|front_gear_num|uint8z
|10|front_gear|uint8z
|11|rear_gear_num|uint8z
|12|rear_gear|uint8z
device_info
|253|timestamp|date_time|||||s
|0|device_index|device_index
|1|device_type|uint8
|2|manufacturer|manufacturer
|3|serial_number|uint32z
|4|product|uint16
||garmin_product|garmin_product||||||||manufacturer,manufacturer,manufacturer|garmin,dynastream,dynastream_oem
|5|software_version|uint16|||100
|6|hardware_version|uint8
|7|cum_operating_time|uint32|||||s
|10|battery_voltage|uint16|||256||V
|11|battery_status|battery_status
|27|product_name|string
hrv
|0|time|uint16|[N]||1000||s
OTHER MESSAGES
developer_data_id
|0|developer_id|byte|[N]
|1|application_id|byte|[N]
|2|manufacturer_id|manufacturer
|3|developer_data_index|uint8
|4|application_version|uint32
field_description
|0|developer_data_index|uint8
|1|field_definition_number|uint8
|2|fit_base_type_id|fit_base_type
|3|field_name|string|[N]
|4|array|uint8
|5|components|string
|6|scale|uint8
|7|offset|sint8
|8|units|string|[N]
|9|bits|string
|10|accumulate|string
|13|fit_base_unit_id|fit_base_unit
|14|native_mesg_num|mesg_num
|15|native_field_num|uint8
`
